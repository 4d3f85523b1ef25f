package chatbot

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/smarter-sh/smarter/pkg/broker"
	"github.com/smarter-sh/smarter/pkg/events"
	"github.com/smarter-sh/smarter/pkg/manifest"
	"github.com/smarter-sh/smarter/pkg/storage"
	"github.com/smarter-sh/smarter/pkg/types"
)

// Broker reconciles Chatbot manifests against persisted chatbot
// records and drives the deployment lifecycle.
type Broker struct {
	broker.Base
	meta   *manifest.Metadata
	spec   *Spec
	record *types.Chatbot
}

// New constructs the Chatbot broker.
func New(cfg broker.Config, ctx broker.Context, opts broker.Options) (broker.Broker, error) {
	base, err := broker.NewBase(Kind, cfg, ctx, opts)
	if err != nil {
		return nil, err
	}
	b := &Broker{Base: base}

	if b.Src == broker.SourceFromLoader {
		if b.meta, err = b.DecodeMetadata(Kind); err != nil {
			return nil, err
		}
		var spec Spec
		if err := manifest.Decode(Kind, "spec", b.Loader.Spec(), &spec); err != nil {
			return nil, err
		}
		b.spec = &spec
	}

	if ctx.Account != nil && b.Name != "" {
		record, err := cfg.Store.GetChatbotByName(ctx.Account.ID, b.Name)
		switch {
		case err == nil:
			b.record = record
			b.Located()
		case !errors.Is(err, storage.ErrNotFound):
			return nil, broker.NewError(err, "failed to look up %s %s", Kind, b.Name)
		}
	}

	return b, nil
}

func (b *Broker) Kind() string { return Kind }

// Apply creates or updates the chatbot record for (account, name).
// Every referenced plugin must already exist in the account's scope.
func (b *Broker) Apply() (*broker.Response, error) {
	if !b.Ctx.Ready() {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}
	if b.spec == nil {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}

	for i, pluginName := range b.spec.Plugins {
		if _, err := b.Store.GetPluginByName(b.Ctx.Account.ID, pluginName); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, manifest.NewValidationError(Kind, fmt.Sprintf("spec.plugins.%d", i),
					"Plugin %s not found", pluginName)
			}
			return nil, broker.NewError(err, "failed to look up plugin %s", pluginName)
		}
	}

	now := time.Now().UTC()
	record := b.record
	created := record == nil
	if created {
		record = &types.Chatbot{
			ID:               uuid.NewString(),
			AccountID:        b.Ctx.Account.ID,
			Name:             b.meta.Name,
			DeploymentStatus: types.DeploymentStatusUndeployed,
			CreatedAt:        now,
		}
	}

	record.Description = b.meta.Description
	record.Version = b.meta.Version
	record.Tags = b.meta.Tags
	record.AppName = b.spec.Config.AppName
	record.AppAssistant = b.spec.Config.AppAssistant
	record.AppWelcomeMessage = b.spec.Config.AppWelcomeMessage
	record.AppExamplePrompts = b.spec.Config.AppExamplePrompts
	record.DefaultModel = b.spec.Config.DefaultModel
	record.DefaultTemperature = b.spec.Config.DefaultTemperature
	record.DefaultMaxTokens = b.spec.Config.DefaultMaxTokens
	record.Subdomain = b.spec.Config.Subdomain
	record.CustomDomain = b.spec.Config.CustomDomain
	record.Plugins = b.spec.Plugins
	record.UpdatedAt = now

	if record.DefaultModel == "" {
		record.DefaultModel = defaultModel
	}
	if record.DefaultTemperature == 0 {
		record.DefaultTemperature = defaultTemperature
	}
	if record.DefaultMaxTokens == 0 {
		record.DefaultMaxTokens = defaultMaxTokens
	}
	if record.Subdomain == "" {
		record.Subdomain = record.Name
	}

	var err error
	if created {
		err = b.Store.CreateChatbot(record)
	} else {
		err = b.Store.UpdateChatbot(record)
	}
	if err != nil {
		return nil, broker.NewError(err, "failed to persist %s %s", Kind, record.Name)
	}
	b.record = record

	b.Publish(events.EventResourceApplied, Kind, record.Name)
	b.Log.Info().Str("name", record.Name).Bool("created", created).Msg("chatbot applied")

	return broker.NewSuccess(Kind, broker.CommandApply, b.document(record),
		broker.SuccessMessage(Kind, record.Name, broker.CommandApply)), nil
}

// Get queries chatbots by name or, with AllObjects, every chatbot in
// scope.
func (b *Broker) Get(params broker.GetParams) (*broker.Response, error) {
	if !b.Ctx.Ready() {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}

	var records []*types.Chatbot
	if params.AllObjects || (params.Name == "" && b.Name == "") {
		all, err := b.Store.ListChatbots(b.Ctx.Account.ID)
		if err != nil {
			return nil, broker.NewError(err, "failed to list %s records", Kind)
		}
		records = all
	} else if b.record != nil {
		records = []*types.Chatbot{b.record}
	}

	items := make([]any, 0, len(records))
	for _, record := range records {
		if !broker.MatchesTags(record.Tags, params.Tags) {
			continue
		}
		items = append(items, b.document(record))
	}

	resp := broker.NewSuccess(Kind, broker.CommandGet, &broker.ListData{
		Count:  len(items),
		Items:  items,
		Titles: titles,
	}, broker.SuccessMessage(Kind, params.Name, broker.CommandGet)).WithCount(len(items))
	if len(items) == 0 {
		resp.WithStatus(http.StatusNotFound)
	}
	return resp, nil
}

// Describe renders the full current document for a single chatbot.
func (b *Broker) Describe() (*broker.Response, error) {
	if !b.Ctx.Ready() || b.record == nil {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}
	return broker.NewSuccess(Kind, broker.CommandDescribe, b.document(b.record),
		broker.SuccessMessage(Kind, b.record.Name, broker.CommandDescribe)), nil
}

// Delete removes the chatbot record for (account, name). A deployed
// chatbot is undeployed implicitly by deletion.
func (b *Broker) Delete() (*broker.Response, error) {
	if !b.Ctx.Ready() || b.record == nil {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}

	if err := b.Store.DeleteChatbot(b.record.ID); err != nil {
		return nil, broker.NewError(err, "failed to delete %s %s", Kind, b.record.Name)
	}
	name := b.record.Name
	b.record = nil

	b.Publish(events.EventResourceDeleted, Kind, name)
	return broker.NewSuccess(Kind, broker.CommandDelete, nil,
		broker.SuccessMessage(Kind, name, broker.CommandDelete)), nil
}

// Deploy transitions the chatbot to deployed and assigns its serving
// URL. Deploying an already-deployed chatbot refreshes the URL and is
// not an error.
func (b *Broker) Deploy() (*broker.Response, error) {
	if !b.Ctx.Ready() || b.record == nil {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}

	now := time.Now().UTC()
	b.record.DeploymentStatus = types.DeploymentStatusDeployed
	b.record.URL = b.servingURL(b.record)
	b.record.DeployedAt = now
	b.record.UpdatedAt = now
	if err := b.Store.UpdateChatbot(b.record); err != nil {
		return nil, broker.NewError(err, "failed to deploy %s %s", Kind, b.record.Name)
	}

	b.Publish(events.EventChatbotDeployed, Kind, b.record.Name)
	b.Log.Info().Str("name", b.record.Name).Str("url", b.record.URL).Msg("chatbot deployed")

	return broker.NewSuccess(Kind, broker.CommandDeploy, b.document(b.record),
		broker.SuccessMessage(Kind, b.record.Name, broker.CommandDeploy)), nil
}

// Undeploy transitions the chatbot back to undeployed. The record and
// its configuration survive; only the serving endpoint is withdrawn.
func (b *Broker) Undeploy() (*broker.Response, error) {
	if !b.Ctx.Ready() || b.record == nil {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}

	b.record.DeploymentStatus = types.DeploymentStatusUndeployed
	b.record.URL = ""
	b.record.DeployedAt = time.Time{}
	b.record.UpdatedAt = time.Now().UTC()
	if err := b.Store.UpdateChatbot(b.record); err != nil {
		return nil, broker.NewError(err, "failed to undeploy %s %s", Kind, b.record.Name)
	}

	b.Publish(events.EventChatbotUndeployed, Kind, b.record.Name)
	return broker.NewSuccess(Kind, broker.CommandUndeploy, b.document(b.record),
		broker.SuccessMessage(Kind, b.record.Name, broker.CommandUndeploy)), nil
}

// Chat sends one prompt through the chatbot's configured model. Plugins
// whose selector matches the prompt contribute additional system
// context before the completion call.
func (b *Broker) Chat(prompt string) (*broker.Response, error) {
	if !b.Ctx.Ready() || b.record == nil {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, manifest.NewValidationError(Kind, "prompt", "Field required")
	}
	if b.Completions == nil {
		return nil, broker.NewError(nil, "no chat completion provider is configured")
	}

	messages := []types.ChatMessage{{
		Role:    "system",
		Content: b.systemPrompt(),
	}}
	for _, plugin := range b.matchingPlugins(prompt) {
		messages = append(messages, types.ChatMessage{
			Role:    "system",
			Content: pluginContext(plugin),
		})
	}
	messages = append(messages, types.ChatMessage{Role: "user", Content: prompt})

	reply, err := b.Completions.Complete(
		b.record.DefaultModel, b.record.DefaultTemperature, b.record.DefaultMaxTokens, messages)
	if err != nil {
		return nil, broker.NewError(err, "chat completion failed for %s %s", Kind, b.record.Name)
	}

	data := map[string]any{
		"prompt":   prompt,
		"response": reply,
		"model":    b.record.DefaultModel,
	}
	return broker.NewSuccess(Kind, broker.CommandChat, data,
		broker.SuccessMessage(Kind, b.record.Name, broker.CommandChat)), nil
}

// Logs returns the chatbot's lifecycle history. Entries are derived
// from the record; there is no per-request log persistence.
func (b *Broker) Logs() (*broker.Response, error) {
	if !b.Ctx.Ready() || b.record == nil {
		return nil, &broker.NotReadyError{Kind: Kind, Name: b.Name}
	}

	entries := []types.LogEntry{{
		Timestamp: b.record.CreatedAt,
		Level:     "info",
		Message:   fmt.Sprintf("chatbot %s created", b.record.Name),
	}}
	if b.record.UpdatedAt.After(b.record.CreatedAt) {
		entries = append(entries, types.LogEntry{
			Timestamp: b.record.UpdatedAt,
			Level:     "info",
			Message:   fmt.Sprintf("chatbot %s configuration applied", b.record.Name),
		})
	}
	if !b.record.DeployedAt.IsZero() {
		entries = append(entries, types.LogEntry{
			Timestamp: b.record.DeployedAt,
			Level:     "info",
			Message:   fmt.Sprintf("chatbot %s deployed at %s", b.record.Name, b.record.URL),
		})
	}

	items := make([]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, entry)
	}
	return broker.NewSuccess(Kind, broker.CommandLogs, &broker.ListData{
		Count:  len(items),
		Items:  items,
		Titles: []string{"timestamp", "level", "message"},
	}, broker.SuccessMessage(Kind, b.record.Name, broker.CommandLogs)).WithCount(len(items)), nil
}

// Schema returns the JSON Schema of the Chatbot document.
func (b *Broker) Schema() (*broker.Response, error) {
	schema, err := manifest.JSONSchema(&Document{})
	if err != nil {
		return nil, broker.NewError(err, "failed to render %s schema", Kind)
	}
	return broker.NewSuccess(Kind, broker.CommandSchema, schema,
		broker.SuccessMessage(Kind, "", broker.CommandSchema)), nil
}

// ExampleManifest returns a representative Chatbot manifest.
func (b *Broker) ExampleManifest() (*broker.Response, error) {
	var doc map[string]any
	if err := yaml.Unmarshal([]byte(exampleManifest), &doc); err != nil {
		return nil, broker.NewError(err, "failed to parse %s example manifest", Kind)
	}
	return broker.NewSuccess(Kind, broker.CommandExampleManifest, doc,
		broker.SuccessMessage(Kind, "", broker.CommandExampleManifest)), nil
}

// servingURL composes the deployed endpoint. A custom domain wins over
// the generated account subdomain.
func (b *Broker) servingURL(record *types.Chatbot) string {
	if record.CustomDomain != "" {
		return fmt.Sprintf("https://%s", record.CustomDomain)
	}
	return fmt.Sprintf("https://%s.%s.%s", record.Subdomain, b.Ctx.Account.AccountNumber, deployDomain)
}

// systemPrompt renders the base persona message for a chat turn.
func (b *Broker) systemPrompt() string {
	assistant := b.record.AppAssistant
	if assistant == "" {
		assistant = "an assistant"
	}
	app := b.record.AppName
	if app == "" {
		app = b.record.Name
	}
	return fmt.Sprintf("You are %s, the assistant for %s.", assistant, app)
}

// matchingPlugins loads the chatbot's plugins whose selector terms
// appear in the prompt. Lookup misses are skipped; a plugin deleted
// after attachment does not break chat.
func (b *Broker) matchingPlugins(prompt string) []*types.Plugin {
	lowered := strings.ToLower(prompt)
	var matched []*types.Plugin
	for _, name := range b.record.Plugins {
		plugin, err := b.Store.GetPluginByName(b.Ctx.Account.ID, name)
		if err != nil {
			continue
		}
		for _, term := range plugin.SearchTerms {
			if term != "" && strings.Contains(lowered, strings.ToLower(term)) {
				matched = append(matched, plugin)
				break
			}
		}
	}
	return matched
}

// pluginContext renders a matched plugin's contribution to the system
// context of a chat turn.
func pluginContext(plugin *types.Plugin) string {
	var sb strings.Builder
	sb.WriteString(plugin.SystemRole)
	if plugin.Class == types.PluginClassStatic && len(plugin.StaticData) > 0 {
		sb.WriteString("\nReference data:")
		for key, value := range plugin.StaticData {
			sb.WriteString(fmt.Sprintf("\n- %s: %s", key, value))
		}
	}
	return sb.String()
}

// document projects a persisted chatbot record into manifest form.
func (b *Broker) document(record *types.Chatbot) *manifest.Envelope {
	spec := Spec{
		Config: ConfigSpec{
			AppName:            record.AppName,
			AppAssistant:       record.AppAssistant,
			AppWelcomeMessage:  record.AppWelcomeMessage,
			AppExamplePrompts:  record.AppExamplePrompts,
			DefaultModel:       record.DefaultModel,
			DefaultTemperature: record.DefaultTemperature,
			DefaultMaxTokens:   record.DefaultMaxTokens,
			Subdomain:          record.Subdomain,
			CustomDomain:       record.CustomDomain,
		},
		Plugins: record.Plugins,
	}
	status := Status{
		Status: manifest.Status{
			Created:  record.CreatedAt,
			Modified: record.UpdatedAt,
		},
		DeploymentStatus: string(record.DeploymentStatus),
		URL:              record.URL,
	}
	if !record.DeployedAt.IsZero() {
		status.DeployedAt = record.DeployedAt.UTC().Format(time.RFC3339)
	}
	meta := manifest.Metadata{
		Name:        record.Name,
		Description: record.Description,
		Version:     record.Version,
		Tags:        record.Tags,
	}
	return manifest.NewEnvelope(Kind, meta, spec, status)
}
