package domain

import "testing"

func TestUser_Validate(t *testing.T) {
	valid := func() *User {
		return &User{ID: "u1", Name: "Ada", Email: "ada@example.com", PasswordHash: "hash"}
	}
	tests := []struct {
		name    string
		mutate  func(*User)
		wantErr bool
	}{
		{"valid", func(*User) {}, false},
		{"missing id", func(u *User) { u.ID = "" }, true},
		{"missing email", func(u *User) { u.Email = "" }, true},
		{"blank name", func(u *User) { u.Name = "  " }, true},
		{"missing hash", func(u *User) { u.PasswordHash = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := valid()
			tt.mutate(u)
			if err := u.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUser_ValidateDefaultsUsername(t *testing.T) {
	u := &User{ID: "u1", Name: "Ada", Email: "ada.l@example.com", PasswordHash: "hash"}
	if err := u.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if u.Username != "ada.l" {
		t.Errorf("Username = %q, want ada.l", u.Username)
	}
}
