package credentials

import (
	"strings"
	"testing"
)

func TestExtractInitData(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{
			name: "jsonPayload",
			url:  "https://bybitcoinsweeper.com/#tgWebAppData=%7B%22id%22%3A123%2C%22first_name%22%3A%22A%22%7D&tgWebAppVersion=7.8",
			want: `{"id":123,"first_name":"A"}`,
		},
		{
			name: "doublyEncodedUserField",
			url:  "https://bybitcoinsweeper.com/#tgWebAppData=user%3D%257B%2522id%2522%253A9%257D",
			want: `user={"id":9}`,
		},
		{
			name: "queryInsteadOfFragment",
			url:  "https://bybitcoinsweeper.com/?tgWebAppData=%7B%22id%22%3A1%7D",
			want: `{"id":1}`,
		},
		{
			name:    "missingParameter",
			url:     "https://bybitcoinsweeper.com/#tgWebAppVersion=7.8",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ExtractInitData(tc.url)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractInitData: %v", err)
			}
			if got != tc.want {
				t.Fatalf("ExtractInitData = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestParseWebAppUser(t *testing.T) {
	t.Parallel()

	blob := `user={"id":123,"first_name":"Alice","last_name":"Smith","username":"asmith","language_code":"en"}&chat_instance=1&auth_date=1700000000&hash=abc`

	user, err := ParseWebAppUser(blob)
	if err != nil {
		t.Fatalf("ParseWebAppUser: %v", err)
	}
	if user.ID != "123" || user.FirstName != "Alice" || user.LastName != "Smith" {
		t.Fatalf("parsed user = %#v", user)
	}
}

func TestParseWebAppUserQuotedID(t *testing.T) {
	t.Parallel()

	user, err := ParseWebAppUser(`{"id":"456","first_name":"B","last_name":"C","username":"bc"}`)
	if err != nil {
		t.Fatalf("ParseWebAppUser: %v", err)
	}
	if user.ID != "456" {
		t.Fatalf("ID = %q, want 456", user.ID)
	}
}

func TestParseWebAppUserIgnoresKeySetAndOrder(t *testing.T) {
	t.Parallel()

	// Аккаунт без username: last_name не должен теряться.
	user, err := ParseWebAppUser(`user={"id":123,"first_name":"A","last_name":"B","language_code":"en"}&auth_date=1`)
	if err != nil {
		t.Fatalf("ParseWebAppUser: %v", err)
	}
	if user.LastName != "B" {
		t.Fatalf("LastName = %q, want B", user.LastName)
	}

	// Порядок ключей в JSON произволен.
	user, err = ParseWebAppUser(`{"first_name":"A","id":123}`)
	if err != nil {
		t.Fatalf("ParseWebAppUser: %v", err)
	}
	if user.ID != "123" || user.FirstName != "A" {
		t.Fatalf("parsed user = %#v", user)
	}
}

func TestParseWebAppUserRejectsBrokenPayloads(t *testing.T) {
	t.Parallel()

	if _, err := ParseWebAppUser(""); err == nil {
		t.Fatal("expected error for empty blob")
	}
	if _, err := ParseWebAppUser(`user=not-json&auth_date=1`); err == nil {
		t.Fatal("expected error for non-JSON user field")
	}
	if _, err := ParseWebAppUser(`{"first_name":"A"}`); err == nil {
		t.Fatal("expected error for payload without id")
	}
}

func TestExtractAndParseNumericIDPayload(t *testing.T) {
	t.Parallel()

	raw := "https://example.org/#tgWebAppData=%7B%22id%22%3A123%2C%22first_name%22%3A%22A%22%2C%22last_name%22%3A%22B%22%2C%22username%22%3A%22ab%22%7D"

	blob, err := ExtractInitData(raw)
	if err != nil {
		t.Fatalf("ExtractInitData: %v", err)
	}
	if !strings.Contains(blob, `"id":123`) {
		t.Fatalf("blob = %q", blob)
	}
	user, err := ParseWebAppUser(blob)
	if err != nil {
		t.Fatalf("ParseWebAppUser: %v", err)
	}
	if user.ID != "123" {
		t.Fatalf("userId = %q, want 123", user.ID)
	}
}
