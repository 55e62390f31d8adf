package events

import "strings"

// Description is the outbound description text and whether the event should
// skip subscriber notifications.
type Description struct {
	Text                 string
	SuppressNotification bool
}

// ComposeDescription derives the event description from the short and long
// descriptions. The first occurrence of marker in short is removed and
// switches notifications off; the long description is never scanned.
// An empty marker disables suppression.
func ComposeDescription(short, long, marker string, includeLong bool) Description {
	var d Description

	if marker != "" && strings.Contains(short, marker) {
		short = strings.TrimSpace(strings.Replace(short, marker, "", 1))
		d.SuppressNotification = true
	}

	if includeLong && long != "" {
		d.Text = short + " " + long
	} else {
		d.Text = short
	}

	return d
}
