package jornettest

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/jornet/internal/handler/health"
	"github.com/playperu/jornet/internal/jornet"
)

// LeaderboardPath is the path parameter of the score endpoints.
type LeaderboardPath struct {
	Leaderboard string `path:"leaderboard" format:"uuid" description:"Leaderboard ID."`
}

// AddScoreRequest documents the score submission body and path.
type AddScoreRequest struct {
	LeaderboardPath
	jornet.ScoreInput
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Jornet API"
	r.Spec.Info.Version = "1.0.0"
	r.Spec.Info.WithDescription("Leaderboard endpoints consumed by the Jornet client.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.AddRespStructure(health.Response{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(health.Response{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/v1/players
	postPlayer, _ := r.NewOperationContext(http.MethodPost, "/api/v1/players")
	postPlayer.SetSummary("Create player")
	postPlayer.SetDescription("Creates a player. A random name is generated when none is given. The returned key signs score submissions and must be kept secret.")
	postPlayer.AddReqStructure(jornet.PlayerInput{})
	postPlayer.AddRespStructure(jornet.Player{}, openapi.WithHTTPStatus(http.StatusCreated))
	postPlayer.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postPlayer)

	// POST /api/v1/scores/{leaderboard}
	postScore, _ := r.NewOperationContext(http.MethodPost, "/api/v1/scores/{leaderboard}")
	postScore.SetSummary("Submit score")
	postScore.SetDescription("Submits a score signed with HMAC-SHA256 over timestamp, leaderboard key, player id, score and metadata.")
	postScore.AddReqStructure(AddScoreRequest{})
	postScore.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	postScore.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postScore.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postScore.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postScore)

	// GET /api/v1/scores/{leaderboard}
	getScores, _ := r.NewOperationContext(http.MethodGet, "/api/v1/scores/{leaderboard}")
	getScores.SetSummary("List scores")
	getScores.SetDescription("Returns the leaderboard, best score first.")
	getScores.AddReqStructure(LeaderboardPath{})
	getScores.AddRespStructure([]jornet.Score{}, openapi.WithHTTPStatus(http.StatusOK))
	getScores.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getScores)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
