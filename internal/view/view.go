// Package view renders the login and chat pages. Handlers depend on the
// Renderer interface so the presentation can be swapped without touching
// session or chat logic.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
)

//go:embed templates/*.html
var templateFS embed.FS

// LoginPage is the data behind the login form. Password is never echoed.
type LoginPage struct {
	Email string
	Error string
}

// ChatPage is the data behind the chat screen.
type ChatPage struct {
	Conversations []chat.Conversation
	Selected      string
	Messages      []chat.Message
	Query         string
	Loading       bool
}

// Renderer draws the two pages of the app.
type Renderer interface {
	RenderLogin(w io.Writer, page LoginPage) error
	RenderChat(w io.Writer, page ChatPage) error
}

// HTMLRenderer renders the embedded html/template pages.
type HTMLRenderer struct {
	login *template.Template
	chat  *template.Template
}

// NewHTMLRenderer parses the embedded templates.
func NewHTMLRenderer() (*HTMLRenderer, error) {
	funcs := template.FuncMap{
		"isUser": func(role chat.Role) bool { return role == chat.RoleUser },
	}

	login, err := template.New("login.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/login.html")
	if err != nil {
		return nil, fmt.Errorf("parse login template: %w", err)
	}

	chatTmpl, err := template.New("chat.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/chat.html")
	if err != nil {
		return nil, fmt.Errorf("parse chat template: %w", err)
	}

	return &HTMLRenderer{login: login, chat: chatTmpl}, nil
}

// RenderLogin writes the login page.
func (r *HTMLRenderer) RenderLogin(w io.Writer, page LoginPage) error {
	return r.login.ExecuteTemplate(w, "layout", page)
}

// RenderChat writes the chat page.
func (r *HTMLRenderer) RenderChat(w io.Writer, page ChatPage) error {
	return r.chat.ExecuteTemplate(w, "layout", page)
}
