package store

// Display rules derived from the message window. msgs is newest first, so
// index i+1 is the next-older message. These are computed per render and
// never stored.

// ShowAuthorLabel reports whether a username label is rendered above
// msgs[i]: group chats only, never for the viewer's own messages, and only
// when the next-older message has a different sender (consecutive messages
// from one sender get a single label).
func ShowAuthorLabel(msgs []Message, i int, viewerID string, isGroup bool) bool {
	if i < 0 || i >= len(msgs) {
		return false
	}
	if !isGroup || msgs[i].Sender.ID == viewerID {
		return false
	}
	if i+1 >= len(msgs) {
		return true
	}
	return msgs[i+1].Sender.ID != msgs[i].Sender.ID
}

// ShowDateSeparator reports whether a date separator is rendered at index
// i: when msgs[i] falls on a different calendar day than the next-older
// message, and always above the oldest loaded message.
func ShowDateSeparator(msgs []Message, i int) bool {
	if i < 0 || i >= len(msgs) {
		return false
	}
	if i+1 >= len(msgs) {
		return true
	}
	a, b := msgs[i].CreatedAt, msgs[i+1].CreatedAt
	return a.Year() != b.Year() || a.YearDay() != b.YearDay()
}
