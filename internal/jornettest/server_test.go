package jornettest

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/playperu/jornet/internal/jornet"
)

func post(t *testing.T, s *Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := s.Client().Post(s.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func createPlayer(t *testing.T, s *Server, name *string) jornet.Player {
	t.Helper()
	resp := post(t, s, "/api/v1/players", jornet.PlayerInput{Name: name})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create player: status %d", resp.StatusCode)
	}
	var p jornet.Player
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		t.Fatalf("decode player: %v", err)
	}
	return p
}

func listScores(t *testing.T, s *Server, leaderboard uuid.UUID) []jornet.Score {
	t.Helper()
	resp, err := s.Client().Get(jornet.ScoresURL(s.URL, leaderboard))
	if err != nil {
		t.Fatalf("get scores: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get scores: status %d", resp.StatusCode)
	}
	var scores []jornet.Score
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		t.Fatalf("decode scores: %v", err)
	}
	return scores
}

func TestCreatePlayer(t *testing.T) {
	s := NewServer(t)

	name := "  Ada "
	p := createPlayer(t, s, &name)
	if p.Name != "Ada" {
		t.Errorf("name = %q, want Ada", p.Name)
	}
	if p.ID == uuid.Nil || p.Key == uuid.Nil {
		t.Errorf("expected id and key to be assigned, got %+v", p)
	}

	anon := createPlayer(t, s, nil)
	if anon.Name == "" {
		t.Error("expected generated name for anonymous player")
	}
	if anon.ID == p.ID {
		t.Error("expected distinct player ids")
	}
}

func TestAddScore(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := NewServer(t, WithClock(func() time.Time { return now }))
	lbID, lbKey := s.NewLeaderboard()
	name := "Ada"
	player := createPlayer(t, s, &name)

	valid := jornet.NewScoreInput(now, lbKey, player, 42, nil)

	tampered := valid
	tampered.Score = 9000

	stale := jornet.NewScoreInput(now.Add(-time.Hour), lbKey, player, 42, nil)

	wrongKey := jornet.NewScoreInput(now, uuid.New(), player, 42, nil)

	unknownPlayer := valid
	unknownPlayer.Player = uuid.New()

	tests := []struct {
		name        string
		leaderboard string
		body        jornet.ScoreInput
		wantStatus  int
	}{
		{"valid", lbID.String(), valid, http.StatusOK},
		{"tampered score", lbID.String(), tampered, http.StatusUnauthorized},
		{"stale timestamp", lbID.String(), stale, http.StatusBadRequest},
		{"wrong leaderboard key", lbID.String(), wrongKey, http.StatusUnauthorized},
		{"unknown player", lbID.String(), unknownPlayer, http.StatusNotFound},
		{"unknown leaderboard", uuid.NewString(), valid, http.StatusNotFound},
		{"malformed leaderboard", "not-a-uuid", valid, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, s, "/api/v1/scores/"+tt.leaderboard, tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
		})
	}

	scores := listScores(t, s, lbID)
	if len(scores) != 1 {
		t.Fatalf("expected only the valid score to be stored, got %d", len(scores))
	}
	if scores[0].Player != "Ada" || scores[0].Score != 42 {
		t.Errorf("stored score = %+v", scores[0])
	}
	if scores[0].Timestamp != "2023-11-14T22:13:20" {
		t.Errorf("timestamp = %q", scores[0].Timestamp)
	}

	if got := len(s.Submissions()); got != len(tests) {
		t.Errorf("recorded %d submissions, want %d", got, len(tests))
	}
}

func TestScoresRanked(t *testing.T) {
	s := NewServer(t)
	lbID, lbKey := s.NewLeaderboard()

	submit := func(name string, score float32, meta *string) {
		p := createPlayer(t, s, &name)
		resp := post(t, s, "/api/v1/scores/"+lbID.String(), jornet.NewScoreInput(time.Now(), lbKey, p, score, meta))
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("submit %s: status %d", name, resp.StatusCode)
		}
	}
	level := "level 2"
	submit("Low", 5, nil)
	submit("High", 10, &level)
	submit("Mid", 7, nil)

	scores := listScores(t, s, lbID)
	var got []string
	for _, sc := range scores {
		got = append(got, sc.Player)
	}
	if strings.Join(got, ",") != "High,Mid,Low" {
		t.Fatalf("ranking = %v, want [High Mid Low]", got)
	}
	if scores[0].Meta == nil || *scores[0].Meta != level {
		t.Errorf("meta = %v, want %q", scores[0].Meta, level)
	}
	if scores[1].Meta != nil {
		t.Errorf("meta = %q, want nil", *scores[1].Meta)
	}
}

func TestEmptyLeaderboard(t *testing.T) {
	s := NewServer(t)
	lbID, _ := s.NewLeaderboard()

	if scores := listScores(t, s, lbID); len(scores) != 0 {
		t.Fatalf("expected empty leaderboard, got %v", scores)
	}
}

func TestHandleOpenAPI(t *testing.T) {
	s := NewServer(t)

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("content-type = %q, want application/json", got)
	}

	body := rec.Body.String()
	for _, path := range []string{`"/api/v1/players"`, `"/api/v1/scores/{leaderboard}"`, `"/healthz"`} {
		if !strings.Contains(body, path) {
			t.Errorf("body missing %s path", path)
		}
	}
}

func TestHandleDocs(t *testing.T) {
	s := NewServer(t)

	req := httptest.NewRequest(http.MethodGet, "/docs/", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "/openapi.json") {
		t.Fatal("docs page does not reference /openapi.json")
	}
}

func TestHealthz(t *testing.T) {
	s := NewServer(t)

	resp, err := s.Client().Get(s.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if body["sqlite"] != "ok" {
		t.Fatalf("sqlite = %q, want ok", body["sqlite"])
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMaxSkewAndLogging(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	var logs lockedBuffer
	s := NewServer(t,
		WithClock(func() time.Time { return now }),
		WithMaxSkew(time.Second),
		WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
	)
	lbID, lbKey := s.NewLeaderboard()
	p := createPlayer(t, s, nil)

	body, err := json.Marshal(jornet.NewScoreInput(now.Add(-10*time.Second), lbKey, p, 1, nil))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scores/"+lbID.String(), bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	if !strings.Contains(logs.String(), `"status":400`) {
		t.Fatalf("expected request log, got %q", logs.String())
	}
}
