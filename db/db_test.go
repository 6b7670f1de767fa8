package db

import (
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/zombar/linkstash/models"
)

// testDB connects to the database named by TEST_DATABASE_URL and wipes the
// tables. Tests are skipped when the variable is unset.
func testDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database tests")
	}

	database, err := New(Config{DSN: dsn})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if _, err := database.conn.Exec("TRUNCATE links, users CASCADE"); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
	return database
}

func createTestUser(t *testing.T, database *DB, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Name: "Test User", PasswordHash: "hash"}
	if err := database.CreateUser(user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

func createTestLink(t *testing.T, database *DB, userID, url string, tags []string) *models.Link {
	t.Helper()
	link := &models.Link{
		UserID: userID,
		URL:    url,
		Title:  "Title for " + url,
		Domain: "example.com",
		Tags:   tags,
	}
	if err := database.CreateLink(link); err != nil {
		t.Fatalf("CreateLink failed: %v", err)
	}
	return link
}

func TestUserCRUD(t *testing.T) {
	database := testDB(t)

	user := createTestUser(t, database, "a@example.com")
	if user.ID == "" || user.CreatedAt.IsZero() {
		t.Fatalf("CreateUser did not assign id/timestamps: %+v", user)
	}

	byEmail, err := database.GetUserByEmail("a@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != user.ID || byEmail.PasswordHash != "hash" {
		t.Errorf("GetUserByEmail = %+v", byEmail)
	}

	byID, err := database.GetUserByID(user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.Email != "a@example.com" {
		t.Errorf("GetUserByID = %+v", byID)
	}

	if _, err := database.GetUserByEmail("nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUserByEmail for unknown email err = %v, want ErrNotFound", err)
	}

	dup := &models.User{Email: "a@example.com", PasswordHash: "other"}
	if err := database.CreateUser(dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate email err = %v, want ErrDuplicate", err)
	}
}

func TestLinkCRUD(t *testing.T) {
	database := testDB(t)
	user := createTestUser(t, database, "a@example.com")

	link := createTestLink(t, database, user.ID, "https://example.com/a", []string{"News"})
	if link.ID == "" {
		t.Fatal("CreateLink did not assign an id")
	}

	exists, err := database.LinkExists(user.ID, "https://example.com/a")
	if err != nil || !exists {
		t.Errorf("LinkExists = (%v, %v), want (true, nil)", exists, err)
	}
	exists, err = database.LinkExists(user.ID, "https://example.com/other")
	if err != nil || exists {
		t.Errorf("LinkExists for unknown URL = (%v, %v)", exists, err)
	}

	got, err := database.GetLinkByID(user.ID, link.ID)
	if err != nil {
		t.Fatalf("GetLinkByID failed: %v", err)
	}
	if got.URL != link.URL || !reflect.DeepEqual(got.Tags, []string{"News"}) {
		t.Errorf("GetLinkByID = %+v", got)
	}
	if got.Image != nil {
		t.Errorf("Image = %v, want nil for absent image", got.Image)
	}

	if err := database.DeleteLink(user.ID, link.ID); err != nil {
		t.Fatalf("DeleteLink failed: %v", err)
	}
	if _, err := database.GetLinkByID(user.ID, link.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetLinkByID after delete err = %v, want ErrNotFound", err)
	}
	if err := database.DeleteLink(user.ID, link.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteLink err = %v, want ErrNotFound", err)
	}
}

func TestLinkUniquePerUser(t *testing.T) {
	database := testDB(t)
	userA := createTestUser(t, database, "a@example.com")
	userB := createTestUser(t, database, "b@example.com")

	createTestLink(t, database, userA.ID, "https://example.com/a", nil)

	dup := &models.Link{UserID: userA.ID, URL: "https://example.com/a", Domain: "example.com"}
	if err := database.CreateLink(dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate (user, url) err = %v, want ErrDuplicate", err)
	}

	// A different user may save the same URL.
	other := &models.Link{UserID: userB.ID, URL: "https://example.com/a", Domain: "example.com"}
	if err := database.CreateLink(other); err != nil {
		t.Errorf("same URL for another user err = %v", err)
	}
}

func TestLinkOwnershipScoping(t *testing.T) {
	database := testDB(t)
	userA := createTestUser(t, database, "a@example.com")
	userB := createTestUser(t, database, "b@example.com")
	link := createTestLink(t, database, userA.ID, "https://example.com/a", nil)

	if _, err := database.GetLinkByID(userB.ID, link.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetLinkByID across users err = %v, want ErrNotFound", err)
	}
	if err := database.DeleteLink(userB.ID, link.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteLink across users err = %v, want ErrNotFound", err)
	}
	if _, err := database.GetLinkByID(userA.ID, link.ID); err != nil {
		t.Errorf("owner's link gone after cross-user delete attempt: %v", err)
	}
}

func TestListLinksOrderAndPaging(t *testing.T) {
	database := testDB(t)
	user := createTestUser(t, database, "a@example.com")

	urls := []string{
		"https://example.com/1",
		"https://example.com/2",
		"https://example.com/3",
	}
	for _, u := range urls {
		createTestLink(t, database, user.ID, u, nil)
		time.Sleep(2 * time.Millisecond) // distinct created_at for ordering
	}

	count, err := database.CountLinks(user.ID)
	if err != nil || count != 3 {
		t.Fatalf("CountLinks = (%d, %v), want (3, nil)", count, err)
	}

	links, err := database.ListLinks(user.ID, 2, 0)
	if err != nil {
		t.Fatalf("ListLinks failed: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("ListLinks returned %d links, want 2", len(links))
	}
	// Newest first.
	if links[0].URL != "https://example.com/3" {
		t.Errorf("first link = %q, want the most recent", links[0].URL)
	}

	rest, err := database.ListLinks(user.ID, 2, 2)
	if err != nil {
		t.Fatalf("ListLinks failed: %v", err)
	}
	if len(rest) != 1 || rest[0].URL != "https://example.com/1" {
		t.Errorf("second page = %+v", rest)
	}
}

func TestSearchLinksDB(t *testing.T) {
	database := testDB(t)
	user := createTestUser(t, database, "a@example.com")

	golink := &models.Link{
		UserID: user.ID, URL: "https://example.com/go-tips",
		Title: "Go Tips", Description: "programming notes",
		Domain: "example.com", Tags: []string{"Blog"},
	}
	newslink := &models.Link{
		UserID: user.ID, URL: "https://news.example.com/world",
		Title: "World Update", Description: "daily news",
		Domain: "news.example.com", Tags: []string{"News", "Social Media Post"},
	}
	for _, l := range []*models.Link{golink, newslink} {
		if err := database.CreateLink(l); err != nil {
			t.Fatalf("CreateLink failed: %v", err)
		}
	}

	tests := []struct {
		name     string
		query    string
		tag      string
		wantURLs []string
	}{
		{"title substring case-insensitive", "go tips", "", []string{golink.URL}},
		{"description substring", "daily", "", []string{newslink.URL}},
		{"tag membership", "", "News", []string{newslink.URL}},
		{"multi-word tag", "", "Social Media Post", []string{newslink.URL}},
		{"query plus tag", "example", "Blog", []string{golink.URL}},
		{"no match", "nonexistent", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links, err := database.SearchLinks(user.ID, tt.query, tt.tag, 10, 0)
			if err != nil {
				t.Fatalf("SearchLinks failed: %v", err)
			}
			var urls []string
			for _, l := range links {
				urls = append(urls, l.URL)
			}
			if !reflect.DeepEqual(urls, tt.wantURLs) {
				t.Errorf("SearchLinks = %v, want %v", urls, tt.wantURLs)
			}

			count, err := database.CountSearchLinks(user.ID, tt.query, tt.tag)
			if err != nil {
				t.Fatalf("CountSearchLinks failed: %v", err)
			}
			if count != len(tt.wantURLs) {
				t.Errorf("CountSearchLinks = %d, want %d", count, len(tt.wantURLs))
			}
		})
	}
}

func TestMigrationVersions(t *testing.T) {
	seen := make(map[int]bool)
	for _, m := range migrations {
		if m.Version <= 0 {
			t.Errorf("migration %q has non-positive version %d", m.Name, m.Version)
		}
		if seen[m.Version] {
			t.Errorf("duplicate migration version %d", m.Version)
		}
		seen[m.Version] = true
		if m.Name == "" || m.Up == "" || m.Down == "" {
			t.Errorf("migration %d is missing a name or SQL", m.Version)
		}
	}
}

func TestSearchWhere(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		tag       string
		wantWhere string
		wantArgs  []interface{}
	}{
		{
			"no filters",
			"", "",
			"user_id = $1",
			[]interface{}{"u1"},
		},
		{
			"query only",
			"go", "",
			"user_id = $1 AND (title ILIKE $2 OR description ILIKE $2 OR domain ILIKE $2 OR url ILIKE $2)",
			[]interface{}{"u1", "%go%"},
		},
		{
			"tag only",
			"", "News",
			"user_id = $1 AND tags ? $2",
			[]interface{}{"u1", "News"},
		},
		{
			"query and tag",
			"go", "News",
			"user_id = $1 AND (title ILIKE $2 OR description ILIKE $2 OR domain ILIKE $2 OR url ILIKE $2) AND tags ? $3",
			[]interface{}{"u1", "%go%", "News"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, args := searchWhere("u1", tt.query, tt.tag)
			if where != tt.wantWhere {
				t.Errorf("where = %q, want %q", where, tt.wantWhere)
			}
			if !reflect.DeepEqual(args, tt.wantArgs) {
				t.Errorf("args = %v, want %v", args, tt.wantArgs)
			}
		})
	}
}
