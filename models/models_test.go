package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestUserJSONHidesPasswordHash(t *testing.T) {
	user := User{
		ID:           "u1",
		Email:        "a@example.com",
		Name:         "Test User",
		PasswordHash: "$2a$12$secret",
	}

	data, err := json.Marshal(user)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Contains(string(data), "secret") || strings.Contains(string(data), "PasswordHash") {
		t.Errorf("serialized user leaks password hash: %s", data)
	}
	if !strings.Contains(string(data), `"email":"a@example.com"`) {
		t.Errorf("serialized user = %s", data)
	}
}

func TestLinkJSONShape(t *testing.T) {
	link := Link{
		ID:     "l1",
		UserID: "u1",
		URL:    "https://example.com/a",
		Tags:   []string{},
	}

	data, err := json.Marshal(link)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	body := string(data)

	if strings.Contains(body, "u1") {
		t.Errorf("serialized link exposes the owner id: %s", body)
	}
	if !strings.Contains(body, `"tags":[]`) {
		t.Errorf("empty tags must serialize as an array: %s", body)
	}
	if !strings.Contains(body, `"image":null`) {
		t.Errorf("absent image must serialize as null: %s", body)
	}
}

func TestLinkWithSummaryFlattens(t *testing.T) {
	data, err := json.Marshal(LinkWithSummary{
		Link:    Link{ID: "l1", URL: "https://example.com/a", Tags: []string{"News"}},
		Summary: "A short summary.",
	})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var flat map[string]interface{}
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if flat["id"] != "l1" || flat["summary"] != "A short summary." {
		t.Errorf("flattened link = %v", flat)
	}
	if _, nested := flat["link"]; nested {
		t.Error("link fields must embed at the top level, not nest")
	}
}

func TestTagCategories(t *testing.T) {
	want := []string{"Image", "Video", "News", "Blog", "Music", "Social Media Post"}
	if len(TagCategories) != len(want) {
		t.Fatalf("vocabulary size = %d, want %d", len(TagCategories), len(want))
	}
	for i, category := range want {
		if TagCategories[i] != category {
			t.Errorf("TagCategories[%d] = %q, want %q", i, TagCategories[i], category)
		}
	}
}
