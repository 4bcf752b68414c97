package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
)

// Minimal TwiML builder for the outbound voice response. It intentionally
// avoids any provider SDK dependency; only the primitives we serve are here.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// RenderVoiceSay renders the document Twilio executes when a callee answers:
// speak the message, then hang up.
func RenderVoiceSay(message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", errors.New("telephony: say message is required")
	}

	r := twimlResponse{Verbs: []any{
		twimlSay{Voice: "alice", Text: message},
		twimlHangup{},
	}}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
