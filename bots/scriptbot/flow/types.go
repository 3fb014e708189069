// Package flow is the conversation state machine of scriptbot. It is driven
// by transport-neutral events and answers through a Responder.
package flow

import (
	"context"

	"github.com/m3rciful/scriptbot/bots/scriptbot/menu"
	"github.com/m3rciful/scriptbot/bots/scriptbot/models"
)

// Kind names a multi-step conversation.
type Kind string

const (
	CreateFile       Kind = "create_file"
	RunFile          Kind = "run_file"
	InstallLibraries Kind = "install_libraries"
)

// Step is the input a session is waiting for.
type Step string

const (
	AwaitingCode      Step = "awaiting_code"
	AwaitingFile      Step = "awaiting_file"
	AwaitingToken     Step = "awaiting_token"
	AwaitingLibraries Step = "awaiting_libraries"
)

// Session is the per-user conversation state. A user without a session is
// at the top menu.
type Session struct {
	Flow     Kind
	Step     Step
	Language models.Language
	Code     string
	// Staged is the downloaded upload awaiting registration.
	Staged   string
	FileName string
}

// Document describes an attached file.
type Document struct {
	FileName string
	Size     int64
}

// Event is one inbound chat event.
type Event struct {
	UserID      int64
	ChatID      int64
	Username    string
	DisplayName string
	Text        string
	IsCommand   bool
	// Action is the callback action code of a button press.
	Action   string
	Document *Document
	// Args holds the words after a command name.
	Args []string
}

// Reply is an outbound message: Markdown text and an optional menu.
type Reply struct {
	Text string
	Menu menu.ID
}

// Responder delivers replies for the event being handled.
type Responder interface {
	Send(ctx context.Context, r Reply) error
	// Edit replaces the message a button press came from.
	Edit(ctx context.Context, r Reply) error
	// Download saves the event's document at dst.
	Download(ctx context.Context, dst string) error
}

// Store is the persistence the conversations need.
type Store interface {
	EnsureUser(ctx context.Context, userID int64, username, displayName string)
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	CanRegisterBot(ctx context.Context, userID int64) (bool, error)
	RegisterBot(ctx context.Context, bot models.NewBot) (int64, error)
	AddLibrary(ctx context.Context, name string, installedBy int64) (bool, error)
	ListLibraries(ctx context.Context) ([]string, error)
	ListUserBots(ctx context.Context, userID int64) ([]models.BotSummary, error)
}

// SessionStore keeps one Session per user and serializes per-user work.
type SessionStore interface {
	Get(userID int64) (Session, bool)
	Set(userID int64, s Session)
	Clear(userID int64)
	Lock(userID int64) (unlock func())
}
