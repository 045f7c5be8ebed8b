// Package babelconfig serializes transform configuration so that it can
// be written next to the converted app and read back by the same
// process. In-process plugins travel as references that only the
// process which registered them can resolve.
package babelconfig

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// ErrNonceMismatch is returned when serialized config came from another
// process.
var ErrNonceMismatch = errors.New("babel config was serialized by a different process")

// PluginFunc is an in-process source transform.
type PluginFunc func(rel string, src []byte) ([]byte, error)

// Plugin is one configured transform. Plugins registered with a Context
// carry an ID; plain named plugins do not.
type Plugin struct {
	Name    string         `json:"name"`
	Options map[string]any `json:"options,omitempty"`
	ID      int            `json:"id,omitempty"`
}

// Config is the serializable transform configuration.
type Config struct {
	Target  string            `json:"target"`
	Define  map[string]string `json:"define,omitempty"`
	Plugins []Plugin          `json:"plugins,omitempty"`
}

// Context scopes plugin registrations to one build process.
type Context struct {
	nonce string

	mu      sync.Mutex
	plugins []PluginFunc
}

// NewContext returns a context with a fresh random nonce.
func NewContext() *Context {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("babelconfig: read random nonce: %v", err))
	}
	return &Context{nonce: hex.EncodeToString(b[:])}
}

var processContext = sync.OnceValue(NewContext)

// Default returns the context of the current process, created on first
// use.
func Default() *Context { return processContext() }

// Nonce identifies the context.
func (c *Context) Nonce() string { return c.nonce }

// Register makes fn referable from serialized config.
func (c *Context) Register(name string, fn PluginFunc) Plugin {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plugins = append(c.plugins, fn)
	return Plugin{Name: name, ID: len(c.plugins)}
}

// Resolve returns the in-process functions of cfg's registered plugins,
// in order.
func (c *Context) Resolve(cfg Config) ([]PluginFunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []PluginFunc
	for _, p := range cfg.Plugins {
		if p.ID == 0 {
			continue
		}
		if p.ID > len(c.plugins) {
			return nil, fmt.Errorf("plugin %s: unknown id %d", p.Name, p.ID)
		}
		out = append(out, c.plugins[p.ID-1])
	}
	return out, nil
}

type envelope struct {
	Nonce  string `json:"nonce"`
	Config Config `json:"config"`
}

// Serialize encodes cfg stamped with the context nonce.
func (c *Context) Serialize(cfg Config) ([]byte, error) {
	b, err := json.MarshalIndent(envelope{Nonce: c.nonce, Config: cfg}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Deserialize decodes config written by Serialize on this same context.
func (c *Context) Deserialize(data []byte) (Config, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Config{}, fmt.Errorf("decode babel config: %w", err)
	}
	if env.Nonce != c.nonce {
		return Config{}, fmt.Errorf("%w: got %q, want %q", ErrNonceMismatch, env.Nonce, c.nonce)
	}
	return env.Config, nil
}
