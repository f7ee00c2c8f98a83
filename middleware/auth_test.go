package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/Dosada05/tabletennis-bracket/models"
)

const secret = "test-secret"

func sign(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func claims(userID int, role string) jwt.MapClaims {
	return jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticateStoresActor(t *testing.T) {
	var got models.Actor
	h := Authenticate(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, err := GetActorFromContext(r.Context())
		if err != nil {
			t.Errorf("GetActorFromContext: %v", err)
		}
		got = a
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := serve(h, sign(t, secret, claims(42, "referee")))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if got.UserID != 42 || got.Role != models.RoleReferee {
		t.Fatalf("actor = %+v", got)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	h := Authenticate(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached")
	}))
	expired := claims(1, "organizer")
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	tests := map[string]string{
		"missing":      "",
		"garbage":      "not-a-token",
		"wrong secret": sign(t, "other", claims(1, "organizer")),
		"expired":      sign(t, secret, expired),
	}
	for name, tok := range tests {
		if rec := serve(h, tok); rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d", name, rec.Code)
		}
	}
}

func TestAuthorize(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := Authenticate(secret)(Authorize("organizer")(ok))

	tests := []struct {
		role string
		want int
	}{
		{"organizer", http.StatusOK},
		{"admin", http.StatusOK},
		{"referee", http.StatusForbidden},
		{"player", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		if rec := serve(h, sign(t, secret, claims(3, tt.role))); rec.Code != tt.want {
			t.Errorf("role %s: status = %d, want %d", tt.role, rec.Code, tt.want)
		}
	}
}

func TestActorFromClaims(t *testing.T) {
	tests := []struct {
		name    string
		claims  jwt.MapClaims
		want    models.Actor
		wantErr bool
	}{
		{"number id", jwt.MapClaims{"user_id": float64(5), "role": "organizer"}, models.Actor{UserID: 5, Role: models.RoleOrganizer}, false},
		{"string id", jwt.MapClaims{"user_id": "12", "role": "referee"}, models.Actor{UserID: 12, Role: models.RoleReferee}, false},
		{"fractional id", jwt.MapClaims{"user_id": 1.5, "role": "admin"}, models.Actor{}, true},
		{"zero id", jwt.MapClaims{"user_id": float64(0), "role": "admin"}, models.Actor{}, true},
		{"bad string id", jwt.MapClaims{"user_id": "abc", "role": "admin"}, models.Actor{}, true},
		{"missing id", jwt.MapClaims{"role": "admin"}, models.Actor{}, true},
		{"missing role", jwt.MapClaims{"user_id": float64(1)}, models.Actor{}, true},
		{"unknown role", jwt.MapClaims{"user_id": float64(1), "role": "player"}, models.Actor{}, true},
		{"role not a string", jwt.MapClaims{"user_id": float64(1), "role": 3}, models.Actor{}, true},
	}
	for _, tt := range tests {
		got, err := actorFromClaims(tt.claims)
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: actor = %+v, want %+v", tt.name, got, tt.want)
		}
	}
}

func TestAuthorizeReadsStoredActor(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	h := Authorize("referee")(ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no actor: status = %d", rec.Code)
	}

	req = req.WithContext(WithActor(req.Context(), models.Actor{UserID: 9, Role: models.RoleReferee}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("referee actor: status = %d", rec.Code)
	}
}
