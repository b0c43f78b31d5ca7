package mcp_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/lectern/pkg/model"
	"github.com/m-mizutani/lectern/pkg/repository"
	"github.com/m-mizutani/lectern/pkg/service/mcp"
	"github.com/m-mizutani/lectern/pkg/usecase/history"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func seed(t *testing.T) (*repository.Memory, *model.Conversation, *model.NoteRecord) {
	ctx := context.Background()
	repo := repository.NewMemory()

	entries := []model.Entry{
		model.AnnotationBlock{ID: 1, Lines: []model.Line{{Text: "heaps are"}, {Text: "complete trees"}}},
		model.Annotation{ForID: 1, Text: "A heap keeps the smallest key at the root."},
	}
	data, err := model.MarshalEntries(entries)
	gt.NoError(t, err)

	conv := &model.Conversation{
		ID:          model.NewConversationID(),
		UserID:      "student",
		Summary:     model.ConversationSummary(entries),
		CreatedAt:   time.Now(),
		EntriesJSON: string(data),
	}
	gt.NoError(t, repo.PutConversation(ctx, conv))

	rec := &model.NoteRecord{
		ID:     model.NewNoteID(),
		UserID: "student",
		Note: model.Note{
			Topic:       "Heaps",
			KeyConcepts: []string{"heap property"},
			Summary:     "Heaps support fast minimum lookup.",
		},
		CreatedAt: time.Now(),
	}
	gt.NoError(t, repo.PutNote(ctx, rec))

	return repo, conv, rec
}

func connect(t *testing.T, srv *mcp.Server) *mcpsdk.ClientSession {
	ctx := context.Background()
	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	_, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	gt.NoError(t, err)

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func callText(t *testing.T, session *mcpsdk.ClientSession, name string, args map[string]any) string {
	result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	gt.NoError(t, err)
	gt.False(t, result.IsError)
	gt.A(t, result.Content).Length(1)

	text, ok := result.Content[0].(*mcpsdk.TextContent)
	gt.True(t, ok)
	return text.Text
}

func TestServerTools(t *testing.T) {
	repo, conv, rec := seed(t)
	srv := mcp.NewServer(history.New(repo), "student")
	session := connect(t, srv)

	tools, err := session.ListTools(context.Background(), nil)
	gt.NoError(t, err)
	gt.A(t, tools.Tools).Length(4)

	t.Run("list conversations with default user", func(t *testing.T) {
		var got []map[string]any
		gt.NoError(t, json.Unmarshal([]byte(callText(t, session, "list_conversations", map[string]any{})), &got))
		gt.A(t, got).Length(1)
		gt.Equal(t, got[0]["id"], any(string(conv.ID)))
		gt.Equal(t, got[0]["summary"], any("heaps are complete trees"))
	})

	t.Run("get conversation", func(t *testing.T) {
		text := callText(t, session, "get_conversation", map[string]any{"id": string(conv.ID)})
		gt.S(t, text).Contains("A heap keeps the smallest key at the root.")
		gt.S(t, text).Contains(`"type":"annotation"`)
	})

	t.Run("list notes of another user", func(t *testing.T) {
		text := callText(t, session, "list_notes", map[string]any{"user_id": "nobody"})
		gt.Equal(t, text, "[]")
	})

	t.Run("get note", func(t *testing.T) {
		text := callText(t, session, "get_note", map[string]any{"id": string(rec.ID)})
		gt.S(t, text).Contains("Heaps support fast minimum lookup.")
		gt.S(t, text).Contains("heap property")
	})

	t.Run("limit out of range", func(t *testing.T) {
		result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
			Name:      "list_notes",
			Arguments: map[string]any{"limit": 500},
		})
		gt.True(t, err != nil || result.IsError)
	})

	t.Run("missing note", func(t *testing.T) {
		result, err := session.CallTool(context.Background(), &mcpsdk.CallToolParams{
			Name:      "get_note",
			Arguments: map[string]any{"id": "missing"},
		})
		gt.True(t, err != nil || result.IsError)
	})
}

func TestServerHTTPHandler(t *testing.T) {
	ctx := context.Background()
	repo, _, rec := seed(t)
	srv := mcp.NewServer(history.New(repo), "student")

	testServer := httptest.NewServer(srv.Handler())
	defer testServer.Close()

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &mcpsdk.StreamableClientTransport{Endpoint: testServer.URL}, nil)
	gt.NoError(t, err)
	defer session.Close()

	text := callText(t, session, "list_notes", map[string]any{})
	gt.S(t, text).Contains(string(rec.ID))
}
