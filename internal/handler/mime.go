package handler

import (
	"encoding/base64"
	"fmt"
	"mime"
	"strings"
)

const mimeBoundary = "=-workspace-actions-alt"

type outgoingMessage struct {
	To      []string
	CC      []string
	BCC     []string
	Subject string
	Text    string
	HTML    string
}

// encodeRFC822 assembles a multipart/alternative message and returns it
// base64url-encoded, the raw format the Gmail send endpoint expects.
func encodeRFC822(msg outgoingMessage) string {
	var b strings.Builder

	writeHeader(&b, "To", strings.Join(msg.To, ", "))
	if len(msg.CC) > 0 {
		writeHeader(&b, "Cc", strings.Join(msg.CC, ", "))
	}
	if len(msg.BCC) > 0 {
		writeHeader(&b, "Bcc", strings.Join(msg.BCC, ", "))
	}
	writeHeader(&b, "Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	writeHeader(&b, "MIME-Version", "1.0")

	if msg.HTML == "" {
		writeHeader(&b, "Content-Type", `text/plain; charset="utf-8"`)
		b.WriteString("\r\n")
		b.WriteString(msg.Text)
	} else {
		writeHeader(&b, "Content-Type", fmt.Sprintf(`multipart/alternative; boundary=%q`, mimeBoundary))
		b.WriteString("\r\n")
		writePart(&b, "text/plain", msg.Text)
		writePart(&b, "text/html", msg.HTML)
		b.WriteString("--" + mimeBoundary + "--\r\n")
	}

	return base64.URLEncoding.EncodeToString([]byte(b.String()))
}

func writeHeader(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}

func writePart(b *strings.Builder, contentType, body string) {
	b.WriteString("--" + mimeBoundary + "\r\n")
	writeHeader(b, "Content-Type", contentType+`; charset="utf-8"`)
	writeHeader(b, "Content-Transfer-Encoding", "base64")
	b.WriteString("\r\n")

	encoded := base64.StdEncoding.EncodeToString([]byte(body))
	for len(encoded) > 76 {
		b.WriteString(encoded[:76])
		b.WriteString("\r\n")
		encoded = encoded[76:]
	}
	b.WriteString(encoded)
	b.WriteString("\r\n")
}
