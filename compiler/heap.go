package compiler

import (
	"github.com/chazu/xmr/pkg/lsl"
	"github.com/chazu/xmr/pkg/objcode"
)

// ---------------------------------------------------------------------------
// Heap accounting
//
// Every string, list or array variable has an integer tracker slot holding
// the bytes it currently has charged to the instance quota. A write runs
// HEAP_UPDATE, which charges the difference between the new cost and the
// tracker and leaves the new cost to be stored back. Locals are credited
// back in the function epilog.
// ---------------------------------------------------------------------------

// track gives a local its tracker slot when its type is heap tracked.
func (g *funcGen) track(l *localVal) {
	if !l.t.HeapTracked() {
		return
	}
	l.heap = &localVal{slot: g.b.NewLocal("__heap_" + l.name), t: lsl.TagInt, name: "__heap_" + l.name}
	g.tracked = append(g.tracked, l)
}

// onWrite charges the quota for a store through lv. When priorValid is
// false the tracker has not been initialised yet and is treated as zero.
func (g *funcGen) onWrite(lv lvalue, priorValid bool) {
	h, v := lv.heapTrack()
	if h == nil {
		return
	}
	h.storePre(g)
	if priorValid {
		h.push(g)
	} else {
		g.b.EmitConst(lsl.Int(0))
	}
	v.push(g)
	g.b.Emit(objcode.OpHeapUpdate)
	h.storePost(g)
}

// creditAll returns every tracked local's charge to the quota. Emitted once,
// in the epilog.
func (g *funcGen) creditAll() {
	for _, l := range g.tracked {
		l.heap.push(g)
		g.b.Emit(objcode.OpHeapCredit)
	}
}

// releaseBlock resets the heap-tracked locals declared directly in b to
// their defaults, charging the difference.
func (g *funcGen) releaseBlock(b *Block) {
	for _, d := range g.info.blockLocals[b] {
		l := g.locals[d]
		if l == nil || l.heap == nil {
			continue
		}
		g.b.EmitU8(objcode.OpDefault, uint8(l.t))
		l.storePost(g)
		g.onWrite(l, true)
	}
}
