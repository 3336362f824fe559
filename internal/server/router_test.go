package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/bhumika-maharjan/Chat-Application/internal/chat"
	"github.com/bhumika-maharjan/Chat-Application/internal/config"
	"github.com/bhumika-maharjan/Chat-Application/internal/models"
	"github.com/bhumika-maharjan/Chat-Application/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.AutoMigrate(&models.User{}, &models.Room{}, &models.RoomMember{}, &models.Message{}, &models.RefreshToken{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Config{
		Port:                  "0",
		JWTSecret:             "test-secret",
		Env:                   "dev",
		AccessTokenTTLMinutes: 15,
		RefreshTokenTTLDays:   7,
		UploadDir:             "uploads",
	}
	files, err := storage.NewDiskStore(filepath.Join(t.TempDir(), "uploads"))
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}

	store := chat.NewStore(gdb)
	rooms := chat.NewRoomRegistry(store)
	direct := chat.NewDirectRegistry()
	tracker := chat.NewTracker(store, direct)
	chatH := chat.NewHandler(gdb, cfg, store, rooms, direct, tracker, files)
	return SetupRouter(cfg, gdb, chatH, store, rooms, files)
}

func doJSON(t *testing.T, engine *gin.Engine, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	engine := testEngine(t)
	w := doJSON(t, engine, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want 200", w.Code)
	}
}

func TestRegisterLoginProfileFlow(t *testing.T) {
	engine := testEngine(t)

	w := doJSON(t, engine, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username":   "alice",
		"first_name": "Alice",
		"last_name":  "Smith",
		"email":      "alice@example.com",
		"password":   "pass1234",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("register = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, engine, http.MethodPost, "/api/v1/auth/login", "", gin.H{
		"username": "alice",
		"password": "pass1234",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d, body %s", w.Code, w.Body.String())
	}
	var login struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.AccessToken == "" {
		t.Fatal("login returned empty access token")
	}

	w = doJSON(t, engine, http.MethodGet, "/api/v1/profile", login.AccessToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("profile = %d, body %s", w.Code, w.Body.String())
	}
	var profile struct {
		Profile struct {
			Username string `json:"username"`
		} `json:"profile"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if profile.Profile.Username != "alice" {
		t.Errorf("profile username = %q, want alice", profile.Profile.Username)
	}
}

func TestAuthedRoutesRejectMissingToken(t *testing.T) {
	engine := testEngine(t)
	for _, target := range []string{"/api/v1/rooms", "/api/v1/profile", "/api/v1/search/users?q=a"} {
		w := doJSON(t, engine, http.MethodGet, target, "", nil)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without token = %d, want 401", target, w.Code)
		}
	}
}

func TestRoomLifecycleOverREST(t *testing.T) {
	engine := testEngine(t)

	register := func(username string) string {
		w := doJSON(t, engine, http.MethodPost, "/api/v1/auth/register", "", gin.H{
			"username":   username,
			"first_name": "Test",
			"last_name":  "User",
			"email":      username + "@example.com",
			"password":   "pass1234",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("register %s = %d", username, w.Code)
		}
		w = doJSON(t, engine, http.MethodPost, "/api/v1/auth/login", "", gin.H{
			"username": username, "password": "pass1234",
		})
		if w.Code != http.StatusOK {
			t.Fatalf("login %s = %d", username, w.Code)
		}
		var login struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
			t.Fatalf("decode login: %v", err)
		}
		return login.AccessToken
	}

	aliceToken := register("alice")
	bobToken := register("bob")

	w := doJSON(t, engine, http.MethodPost, "/api/v1/rooms", aliceToken, gin.H{"name": "general"})
	if w.Code != http.StatusOK {
		t.Fatalf("create room = %d, body %s", w.Code, w.Body.String())
	}
	var created struct {
		Room struct {
			ID uint `json:"id"`
		} `json:"room"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	roomPath := fmt.Sprintf("/api/v1/rooms/%d", created.Room.ID)

	w = doJSON(t, engine, http.MethodPost, roomPath+"/join", bobToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("join room = %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, engine, http.MethodGet, "/api/v1/rooms", bobToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list rooms = %d", w.Code)
	}
	var rooms struct {
		Rooms []struct {
			Name string `json:"name"`
		} `json:"rooms"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &rooms); err != nil {
		t.Fatalf("decode rooms: %v", err)
	}
	if len(rooms.Rooms) != 1 || rooms.Rooms[0].Name != "general" {
		t.Errorf("rooms = %v, want [general]", rooms.Rooms)
	}

	w = doJSON(t, engine, http.MethodPost, roomPath+"/leave", bobToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("leave room = %d, body %s", w.Code, w.Body.String())
	}
	w = doJSON(t, engine, http.MethodPost, roomPath+"/leave", bobToken, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("second leave = %d, want 403", w.Code)
	}

	// 离开动作以系统消息的形式留在房间历史里。
	w = doJSON(t, engine, http.MethodGet, roomPath+"/messages", aliceToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list messages = %d", w.Code)
	}
	var msgs struct {
		Messages []struct {
			Content *string `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	if len(msgs.Messages) != 1 || msgs.Messages[0].Content == nil || *msgs.Messages[0].Content != "Test User has left the chat." {
		t.Errorf("messages = %v, want the farewell entry", msgs.Messages)
	}
}
