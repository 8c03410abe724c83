package rendergraph

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/vk/rendergraph/internal/ctxlog"
	"github.com/vk/rendergraph/internal/passgraph"
)

const kindCount = int(kindTexture) + 1

// touch is one view a scheduled pass accesses.
type touch struct {
	info *execInfo
	view int
}

type compiled struct {
	deps   *passgraph.Graph
	order  []passgraph.PassID
	active []bool
	infos  [kindCount][]execInfo
	// touches[step] lists the views the pass at step accesses, acceleration
	// structures first, then buffers, then textures.
	touches [][]touch
}

func (c *compiled) info(kind resourceKind, resource int) *execInfo {
	return &c.infos[kind][resource]
}

// compile derives the pass order and per-resource execution records.
func compile(ctx context.Context, rc Context, g *RenderGraph) (*compiled, error) {
	logger := ctxlog.FromContext(ctx)

	nodes := make([]passgraph.ResourceNode, len(g.nodes))
	for i := range g.nodes {
		n := &g.nodes[i]
		nodes[i] = passgraph.ResourceNode{
			Creator:  n.creator,
			Writer:   n.writer,
			Readers:  n.readers,
			External: n.output || g.isImported(n),
		}
	}
	if logger.Enabled(ctx, slog.LevelDebug) {
		for i, n := range g.nodes {
			logger.Debug("Resource node.",
				"node", i, "kind", n.kind.String(), "resource", g.resourceName(&g.nodes[i]),
				"creator", int(n.creator), "writer", int(n.writer), "readers", len(n.readers), "external", nodes[i].External)
		}
	}

	deps, err := passgraph.Build(ctx, len(g.passes), nodes)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCycle, err)
	}

	c := &compiled{deps: deps}
	c.active = deps.ActivePasses()
	c.order = deps.Order(c.active)

	if logger.Enabled(ctx, slog.LevelDebug) {
		names := make([]string, len(c.order))
		for i, p := range c.order {
			names[i] = g.passes[p].name
			logger.Debug("Pass scheduled.", "pass", g.passes[p].name, "level", deps.Level(p), "dependants", len(deps.Dependants(p)))
		}
		logger.Debug("Pass order compiled.", "order", names)

		passNames := make([]string, len(g.passes))
		for i, p := range g.passes {
			passNames[i] = p.name
		}
		var dot strings.Builder
		if err := deps.WriteDOT(&dot, passNames, c.active); err == nil {
			logger.Debug("Dependency graph.", "dot", dot.String())
		}
	}

	c.initInfos(rc, g)
	c.touches = make([][]touch, len(c.order))
	for step, pid := range c.order {
		p := g.passes[pid]
		p.setState(PassScheduled)
		for _, a := range p.accesses {
			info := c.info(a.kind, a.resource)
			views, err := info.addAccess(step, p.queue, a)
			if err != nil {
				return nil, fmt.Errorf("pass %q: %w", p.name, err)
			}
			for _, v := range views {
				c.touches[step] = append(c.touches[step], touch{info: info, view: v})
			}
		}
		slices.SortStableFunc(c.touches[step], func(a, b touch) int {
			return int(a.info.kind) - int(b.info.kind)
		})
	}

	if err := c.checkInitialized(ctx, rc.Options.UninitializedReads, g); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *compiled) initInfos(rc Context, g *RenderGraph) {
	c.infos[kindBuffer] = make([]execInfo, len(g.buffers))
	for i, b := range g.buffers {
		info := newExecInfo(kindBuffer, i, b.name, !b.external.IsNull(), 1)
		info.bufferDesc = b.desc
		if !b.external.IsNull() {
			info.bufferDesc = rc.Device.BufferDesc(b.external)
		}
		info.buffer = b.external
		c.infos[kindBuffer][i] = info
	}

	c.infos[kindTexture] = make([]execInfo, len(g.textures))
	for i, t := range g.textures {
		desc := t.desc
		if !t.external.IsNull() {
			desc = rc.Device.TextureDesc(t.external)
			desc.MipLevels = max(desc.MipLevels, 1)
			desc.LayerCount = max(desc.LayerCount, 1)
		}
		info := newExecInfo(kindTexture, i, t.name, !t.external.IsNull(), desc.ViewCount())
		info.textureDesc = desc
		info.texture = t.external
		c.infos[kindTexture][i] = info
	}

	c.infos[kindTlas] = make([]execInfo, len(g.tlases))
	for i, t := range g.tlases {
		info := newExecInfo(kindTlas, i, t.name, true, 1)
		info.tlas = t.external
		c.infos[kindTlas][i] = info
	}

	c.infos[kindBlasGroup] = make([]execInfo, len(g.blasGroups))
	for i, b := range g.blasGroups {
		info := newExecInfo(kindBlasGroup, i, b.name, true, 1)
		info.blasGroup = b.external
		c.infos[kindBlasGroup][i] = info
	}
}

// checkInitialized applies policy to transient resources whose first
// access does not write them.
func (c *compiled) checkInitialized(ctx context.Context, policy ReadPolicy, g *RenderGraph) error {
	logger := ctxlog.FromContext(ctx)
	for _, kind := range []resourceKind{kindBuffer, kindTexture} {
		for i := range c.infos[kind] {
			info := &c.infos[kind][i]
			if info.external || !info.accessed() {
				continue
			}
			if kind == kindTexture && info.textureDesc.Clear {
				continue
			}
			for v := range info.views {
				entries := info.views[v].entries
				if len(entries) == 0 || entries[0].accesses.HasWrite() {
					continue
				}
				passName := g.passes[c.order[entries[0].step]].name
				if policy == ReadFail {
					return fmt.Errorf("%w: pass %q reads %s %q", ErrUninitializedRead, passName, kind, info.name)
				}
				logger.Debug("Transient resource read before any write; contents are undefined.",
					"pass", passName, "resource", info.name, "view", v)
				break
			}
		}
	}
	return nil
}
