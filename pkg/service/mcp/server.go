package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/usecase/history"
	"github.com/m-mizutani/lectern/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Server exposes saved conversations and notes as MCP tools
type Server struct {
	history *history.UseCase
	userID  string
	server  *mcp.Server
}

// NewServer builds the MCP server. userID is used when a tool call does not
// name a user.
func NewServer(uc *history.UseCase, userID string) *Server {
	s := &Server{
		history: uc,
		userID:  userID,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "lectern",
			Version: "0.1.0",
		}, nil),
	}

	listSchema := mustListSchema()

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_conversations",
		Description: "List recorded lecture conversations of a user, most recent first",
		InputSchema: listSchema,
	}, s.listConversations)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_conversation",
		Description: "Get the transcript blocks and annotations of a recorded conversation",
	}, s.getConversation)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_notes",
		Description: "List structured lecture notes of a user, most recent first",
		InputSchema: listSchema,
	}, s.listNotes)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_note",
		Description: "Get a structured lecture note with topic, key concepts, definitions, questions and summary",
	}, s.getNote)

	return s
}

// MCPServer returns the underlying SDK server
func (s *Server) MCPServer() *mcp.Server {
	return s.server
}

// RunStdio serves over stdin/stdout until the client disconnects or ctx is done
func (s *Server) RunStdio(ctx context.Context) error {
	if err := s.server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "mcp server stopped")
	}
	return nil
}

// Handler serves the streamable HTTP transport
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, nil)
}

type listParams struct {
	UserID string `json:"user_id,omitempty" jsonschema:"User ID. Defaults to the configured user"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum number of items. Defaults to 20, at most 100"`
}

// mustListSchema infers the schema of listParams and bounds limit
func mustListSchema() *jsonschema.Schema {
	schema, err := jsonschema.For[listParams](nil)
	if err != nil {
		panic(goerr.Wrap(err, "failed to infer list tool schema"))
	}

	if limit, ok := schema.Properties["limit"]; ok {
		minimum, maximum := 0.0, float64(maxListLimit)
		limit.Minimum = &minimum
		limit.Maximum = &maximum
	}
	return schema
}

type getConversationParams struct {
	ID string `json:"id" jsonschema:"Conversation ID"`
}

type getNoteParams struct {
	ID string `json:"id" jsonschema:"Note ID"`
}

type conversationView struct {
	ID        string      `json:"id"`
	Summary   string      `json:"summary"`
	CreatedAt string      `json:"created_at"`
	Entries   []entryView `json:"entries,omitempty"`
}

type entryView struct {
	Type    model.EntryKind `json:"type"`
	BlockID int64           `json:"block_id"`
	Text    string          `json:"text"`
}

type noteView struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	CreatedAt string `json:"created_at"`
	*model.Note
}

func (s *Server) resolveList(p *listParams) (string, int) {
	var userID string
	var limit int
	if p != nil {
		userID, limit = p.UserID, p.Limit
	}
	if userID == "" {
		userID = s.userID
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	return userID, limit
}

func (s *Server) listConversations(ctx context.Context, req *mcp.CallToolRequest, params *listParams) (*mcp.CallToolResult, any, error) {
	userID, limit := s.resolveList(params)
	convs, err := s.history.ListConversations(ctx, userID, limit)
	if err != nil {
		return nil, nil, err
	}

	views := make([]conversationView, 0, len(convs))
	for _, c := range convs {
		views = append(views, conversationView{
			ID:        string(c.ID),
			Summary:   c.Summary,
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
		})
	}
	return jsonResult(ctx, views)
}

func (s *Server) getConversation(ctx context.Context, req *mcp.CallToolRequest, params *getConversationParams) (*mcp.CallToolResult, any, error) {
	if params == nil || params.ID == "" {
		return nil, nil, goerr.New("id is required")
	}

	conv, err := s.history.ShowConversation(ctx, model.ConversationID(params.ID))
	if err != nil {
		return nil, nil, err
	}

	view := conversationView{
		ID:        string(conv.ID),
		Summary:   conv.Summary,
		CreatedAt: conv.CreatedAt.Format(time.RFC3339),
	}
	for _, e := range conv.Entries {
		switch v := e.(type) {
		case model.AnnotationBlock:
			view.Entries = append(view.Entries, entryView{Type: v.Kind(), BlockID: v.ID, Text: v.Text()})
		case model.Annotation:
			view.Entries = append(view.Entries, entryView{Type: v.Kind(), BlockID: v.ForID, Text: v.Text})
		}
	}
	return jsonResult(ctx, view)
}

func (s *Server) listNotes(ctx context.Context, req *mcp.CallToolRequest, params *listParams) (*mcp.CallToolResult, any, error) {
	userID, limit := s.resolveList(params)
	notes, err := s.history.ListNotes(ctx, userID, limit)
	if err != nil {
		return nil, nil, err
	}

	views := make([]noteView, 0, len(notes))
	for _, n := range notes {
		views = append(views, noteView{
			ID:        string(n.ID),
			Topic:     n.Note.Topic,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		})
	}
	return jsonResult(ctx, views)
}

func (s *Server) getNote(ctx context.Context, req *mcp.CallToolRequest, params *getNoteParams) (*mcp.CallToolResult, any, error) {
	if params == nil || params.ID == "" {
		return nil, nil, goerr.New("id is required")
	}

	n, err := s.history.ShowNote(ctx, model.NoteID(params.ID))
	if err != nil {
		return nil, nil, err
	}

	return jsonResult(ctx, noteView{
		ID:        string(n.ID),
		Topic:     n.Note.Topic,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
		Note:      &n.Note,
	})
}

func jsonResult(ctx context.Context, v any) (*mcp.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal tool result")
	}
	logging.From(ctx).Debug("mcp tool result", "size", len(data))

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}
