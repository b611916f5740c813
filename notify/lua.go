package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	luajson "layeh.com/gopher-json"
)

const buildCardFunc = "build_card"

// LuaCardBuilder renders cards with a user script. The script MUST define a
// global function `build_card(notice)` which takes the notice as a table
// (title, datetime, env, url, web_url) and returns the card as a table.
// The JSON helper is available through `local json = require("json")`.
type LuaCardBuilder struct {
	path   string
	logger *slog.Logger
	pool   atomic.Pointer[statePool]
}

// statePool keeps idle VMs running one compiled script. Once shut down it
// closes every VM handed back to it.
type statePool struct {
	proto  *lua.FunctionProto
	mu     sync.Mutex
	saved  []*lua.LState
	closed bool
}

func (p *statePool) get() (*lua.LState, error) {
	p.mu.Lock()
	if n := len(p.saved); n > 0 {
		L := p.saved[n-1]
		p.saved = p.saved[:n-1]
		p.mu.Unlock()
		return L, nil
	}
	p.mu.Unlock()

	return newCardState(p.proto)
}

func (p *statePool) put(L *lua.LState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		L.Close()
		return
	}
	p.saved = append(p.saved, L)
}

func (p *statePool) shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	for _, L := range p.saved {
		L.Close()
	}
	p.saved = nil
}

func NewLuaCardBuilder(logger *slog.Logger, path string) (*LuaCardBuilder, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	b := &LuaCardBuilder{path: abs, logger: logger}
	if err := b.load(); err != nil {
		return nil, err
	}

	return b, nil
}

// load compiles the script once and swaps in a fresh pool of VMs running it.
// The previous pool is shut down; VMs still in use are closed when returned.
// On failure the previous pool stays in place.
func (b *LuaCardBuilder) load() error {
	f, err := os.Open(b.path)
	if err != nil {
		return fmt.Errorf("cannot open card script: %w", err)
	}
	defer f.Close()

	chunk, err := parse.Parse(f, b.path)
	if err != nil {
		return fmt.Errorf("cannot parse card script: %w", err)
	}

	proto, err := lua.Compile(chunk, b.path)
	if err != nil {
		return fmt.Errorf("cannot compile card script: %w", err)
	}

	// Run it once so a broken script is reported here and not inside the pool.
	L, err := newCardState(proto)
	if err != nil {
		return err
	}

	pool := &statePool{proto: proto, saved: []*lua.LState{L}}
	if old := b.pool.Swap(pool); old != nil {
		old.shutdown()
	}

	return nil
}

func newCardState(proto *lua.FunctionProto) (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	// No os or io: card scripts only shape data.
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	luajson.Preload(L)

	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, fmt.Errorf("cannot run card script: %w", err)
	}

	if fn, ok := L.GetGlobal(buildCardFunc).(*lua.LFunction); !ok || fn == nil {
		L.Close()
		return nil, fmt.Errorf("card script does not define %s", buildCardFunc)
	}

	return L, nil
}

func (b *LuaCardBuilder) Build(n Notice) (any, error) {
	raw, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}

	pool := b.pool.Load()
	L, err := pool.get()
	if err != nil {
		return nil, err
	}
	defer pool.put(L)

	arg, err := luajson.Decode(L, raw)
	if err != nil {
		return nil, err
	}

	err = L.CallByParam(lua.P{
		Fn:      L.GetGlobal(buildCardFunc),
		NRet:    1,
		Protect: true,
	}, arg)
	if err != nil {
		return nil, fmt.Errorf("lua script error: %w", err)
	}

	ret := L.Get(-1)
	L.Pop(1)

	if _, ok := ret.(*lua.LTable); !ok {
		return nil, fmt.Errorf("%s must return a table, got %s", buildCardFunc, ret.Type())
	}

	card, err := luajson.Encode(ret)
	if err != nil {
		return nil, fmt.Errorf("cannot encode card: %w", err)
	}

	return json.RawMessage(card), nil
}

// Watch reloads the script whenever it changes until ctx is done. The parent
// directory is watched so editors that replace the file are picked up too.
func (b *LuaCardBuilder) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("cannot create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(b.path)); err != nil {
		return fmt.Errorf("cannot add script directory to watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				b.logger.Debug("fsnotify watcher channel is closed.")
				return nil
			}
			if filepath.Clean(event.Name) != b.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if err := b.load(); err != nil {
				b.logger.Error("cannot reload card script, keeping previous version", "path", b.path, "error", err)
				continue
			}
			b.logger.Info("reloaded card script", "path", b.path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
