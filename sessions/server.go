// Package sessions is the collaborator-facing surface of the conversation
// core: HTTP handlers to run turn loops, create branches, and read
// transcripts, plus a websocket event feed for rendering layers. It holds
// no transcript state of its own.
package sessions

import (
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	backrooms "github.com/linxule/liminal-backrooms"
	"github.com/linxule/liminal-backrooms/conversation"
)

// Server wires the scheduler and config behind gin handlers.
type Server struct {
	Scheduler *backrooms.Scheduler
	Config    *backrooms.Config
	Logger    *log.Logger

	feed *eventFeed
}

// NewServer creates the surface and starts pumping bus events to
// websocket subscribers.
func NewServer(sched *backrooms.Scheduler, cfg *backrooms.Config, bus *backrooms.EventBus) *Server {
	logger := log.New(os.Stdout, "[sessions] ", log.LstdFlags)
	s := &Server{
		Scheduler: sched,
		Config:    cfg,
		Logger:    logger,
		feed:      newEventFeed(logger),
	}
	go s.feed.pump(bus.Events())
	return s
}

// Routes registers all handlers.
func (s *Server) Routes(r *gin.Engine) {
	r.POST("/run", s.handleRun)
	r.POST("/branches", s.handleCreateBranch)
	r.GET("/branches", s.handleListBranches)
	r.GET("/branches/:branchID/transcript", s.handleTranscript)
	r.GET("/events", s.handleEvents)
}

// SpeakerRequest names one side of the conversation.
type SpeakerRequest struct {
	Name  string `json:"name" binding:"required"`
	Model string `json:"model" binding:"required"`
}

// RunBody starts or resumes a turn loop.
type RunBody struct {
	BranchID      string         `json:"branch_id"`
	Seed          string         `json:"seed"`
	MaxIterations int            `json:"max_iterations"`
	PromptPair    string         `json:"prompt_pair"`
	Speaker1      SpeakerRequest `json:"speaker1" binding:"required"`
	Speaker2      SpeakerRequest `json:"speaker2" binding:"required"`
}

func (s *Server) handleRun(c *gin.Context) {
	var body RunBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pair, ok := s.Config.PromptPairs[body.PromptPair]
	if body.PromptPair != "" && !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown prompt pair: " + body.PromptPair})
		return
	}

	speaker1 := backrooms.Speaker{Name: body.Speaker1.Name, Model: body.Speaker1.Model, SystemPrompt: pair.Speaker1}
	speaker2 := backrooms.Speaker{Name: body.Speaker2.Name, Model: body.Speaker2.Model, SystemPrompt: pair.Speaker2}
	req := backrooms.RunRequest{
		BranchID:      body.BranchID,
		Seed:          body.Seed,
		MaxIterations: body.MaxIterations,
	}

	// The loop can run for minutes; it reports through the event feed.
	go func() {
		if err := s.Scheduler.Run(req, speaker1, speaker2); err != nil {
			s.Logger.Printf("run on branch %q failed: %v", body.BranchID, err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// BranchBody creates a rabbithole or fork branch.
type BranchBody struct {
	ParentID   string `json:"parent_id"`
	Kind       string `json:"kind" binding:"required"`
	AnchorText string `json:"anchor_text" binding:"required"`
}

func (s *Server) handleCreateBranch(c *gin.Context) {
	var body BranchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if body.ParentID == "" {
		body.ParentID = conversation.MainBranchID
	}

	var (
		id  string
		err error
	)
	switch body.Kind {
	case conversation.BranchRabbithole:
		id, err = s.Scheduler.CreateRabbithole(body.ParentID, body.AnchorText)
	case conversation.BranchFork:
		id, err = s.Scheduler.CreateFork(body.ParentID, body.AnchorText)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be rabbithole or fork"})
		return
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, conversation.ErrUnknownBranch) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"branch_id": id})
}

func (s *Server) handleListBranches(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"branches": s.Scheduler.Tree().Branches()})
}

func (s *Server) handleTranscript(c *gin.Context) {
	branchID := c.Param("branchID")
	branch, err := s.Scheduler.Tree().Branch(branchID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	transcript := branch.Transcript
	if c.Query("visible") == "true" {
		transcript = conversation.Visible(transcript)
	}

	c.JSON(http.StatusOK, gin.H{
		"branch_id":   branch.ID,
		"parent_id":   branch.ParentID,
		"kind":        branch.Kind,
		"anchor_text": branch.AnchorText,
		"turn_count":  branch.TurnCount,
		"state":       s.Scheduler.State(branchID),
		"transcript":  transcript,
	})
}
