package mail

import (
	"fmt"
	"strings"
	"time"
)

const resetSubject = "Your KarmaKanban password reset code"

func resetBody(code string, validFor time.Duration) string {
	minutes := int(validFor.Minutes())
	if minutes <= 0 {
		minutes = 10
	}
	return fmt.Sprintf(
		"Use the following code to reset your KarmaKanban password: %s\n\n"+
			"The code expires in %d minutes and can only be used once.\n"+
			"If you did not request this, you can ignore this email.",
		code, minutes,
	)
}

func buildMIMEMessage(from, to, subject, body string) []byte {
	var message strings.Builder
	message.WriteString(fmt.Sprintf("From: %s\r\n", from))
	message.WriteString(fmt.Sprintf("To: %s\r\n", to))
	message.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	message.WriteString("MIME-Version: 1.0\r\n")
	message.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	message.WriteString("Content-Transfer-Encoding: 7bit\r\n\r\n")
	message.WriteString(body)
	message.WriteString("\r\n")
	return []byte(message.String())
}
