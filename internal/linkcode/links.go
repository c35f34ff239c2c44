package linkcode

import "net/url"

// Links builds t.me deep links for a bot username.
type Links struct {
	Username string
}

func (l Links) deep(payload string) string {
	return "https://t.me/" + l.Username + "?start=" + payload
}

// Content returns the public link for a content id.
func (l Links) Content(id int) string { return l.deep(Encode(id)) }

// Verify returns the deep link used as the target of a monetized redirect.
func (l Links) Verify(tok string) string { return l.deep(VerifyPayload(tok)) }

// Batch returns the public link for a batch id.
func (l Links) Batch(batchID string) string { return l.deep(BatchPayload(batchID)) }

// Retry re-dispatches a blocked payload unchanged (verify_ stripped).
func (l Links) Retry(p Payload) string { return l.deep(p.RetryPayload()) }

// Share wraps a link in Telegram's share dialog URL.
func (l Links) Share(link string) string {
	return "https://t.me/share/url?url=" + url.QueryEscape(link)
}
