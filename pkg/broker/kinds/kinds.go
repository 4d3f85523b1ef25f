// Package kinds assembles the broker registry from every supported
// resource kind. It is the single place a new kind is wired in.
package kinds

import (
	"github.com/smarter-sh/smarter/pkg/broker"
	"github.com/smarter-sh/smarter/pkg/broker/chatbot"
	"github.com/smarter-sh/smarter/pkg/broker/secret"
	"github.com/smarter-sh/smarter/pkg/broker/sqlconnection"
	"github.com/smarter-sh/smarter/pkg/broker/sqlplugin"
	"github.com/smarter-sh/smarter/pkg/broker/staticplugin"
)

// NewRegistry returns a registry with every supported kind registered.
func NewRegistry() *broker.Registry {
	r := broker.NewRegistry()
	r.Register(sqlconnection.Kind, sqlconnection.New)
	r.Register(staticplugin.Kind, staticplugin.New)
	r.Register(sqlplugin.Kind, sqlplugin.New)
	r.Register(chatbot.Kind, chatbot.New)
	r.Register(secret.Kind, secret.New)
	return r
}
