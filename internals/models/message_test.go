package models

import "testing"

func TestValidTopicName(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"orders", true},
		{"orders-2024", true},
		{"O1", true},
		{"", false},
		{"-orders", false},
		{"orders/sub", false},
		{"orders space", false},
		{string(make([]byte, 129)), false},
	}
	for _, c := range cases {
		if got := ValidTopicName(c.name); got != c.want {
			t.Errorf("ValidTopicName(%q) = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestValidMessageID(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"123e4567-e89b-12d3-a456-426614174000", true},
		{"123E4567-E89B-12D3-A456-426614174000", false}, // uppercase not canonical
		{"not-a-uuid", false},
		{"", false},
		{"urn:uuid:123e4567-e89b-12d3-a456-426614174000", false},
	}
	for _, c := range cases {
		if got := ValidMessageID(c.id); got != c.want {
			t.Errorf("ValidMessageID(%q) = %v, want %v", c.id, got, c.want)
		}
	}
}
