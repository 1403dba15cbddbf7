package auth

import (
	"fmt"
	"net/http"
	"sort"
	"time"
)

type accountLister interface {
	Accounts() []AccountStatus
}

// HTTPHandler serves a plain-text account status page with masked tokens.
type HTTPHandler struct {
	mgr accountLister
}

// NewHTTPHandler creates the status page handler.
func NewHTTPHandler(mgr accountLister) *HTTPHandler {
	return &HTTPHandler{mgr: mgr}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	accounts := h.mgr.Accounts()
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	if len(accounts) == 0 {
		_, _ = fmt.Fprintln(w, "No accounts authenticated")
		return
	}

	for _, acct := range accounts {
		line := fmt.Sprintf("%s: %s", acct.ID, acct.State)
		if acct.Token != "" {
			line += fmt.Sprintf(", token: %s, expires: %s",
				maskLeft(acct.Token), acct.Expiry.Format(time.RFC3339))
		}
		_, _ = fmt.Fprintln(w, line)
	}
}

func maskLeft(s string) string {
	rs := []rune(s)
	for i := 0; i < len(rs)-4; i++ {
		rs[i] = 'X'
	}
	return string(rs)
}
