package ui

import (
	"github.com/utop-dev/utop/internal/model"
	"github.com/utop-dev/utop/internal/term"
)

// MaxFilterLen bounds the search filter in bytes.
const MaxFilterLen = 63

// Action tells the loop what to do after a key.
type Action int

const (
	ActionNone Action = iota
	ActionQuit
)

// Model is the interactive state: sort mode, filter, selection and the
// dirty flags that drive the loop.
type Model struct {
	Sort      model.SortMode
	Filter    string
	Searching bool
	Selection int

	NeedsSample bool
	NeedsRender bool
}

// NewModel starts in normal mode with both dirty flags set.
func NewModel(sort model.SortMode, filter string) *Model {
	if len(filter) > MaxFilterLen {
		filter = filter[:MaxFilterLen]
	}
	return &Model{Sort: sort, Filter: filter, NeedsSample: true, NeedsRender: true}
}

// HandleKey applies one key press.
func (m *Model) HandleKey(k term.Key) Action {
	if k.Type == term.KeyQuit {
		return ActionQuit
	}
	if m.Searching {
		m.handleSearchKey(k)
		return ActionNone
	}
	return m.handleNormalKey(k)
}

func (m *Model) handleSearchKey(k term.Key) {
	switch k.Type {
	case term.KeyEsc, term.KeyEnter:
		m.Searching = false
		m.NeedsRender = true
	case term.KeyBackspace:
		if m.Filter == "" {
			m.Searching = false
			m.NeedsRender = true
			return
		}
		m.Filter = m.Filter[:len(m.Filter)-1]
		m.refilter()
	case term.KeyChar:
		if len(m.Filter) < MaxFilterLen {
			m.Filter += string(k.Ch)
			m.refilter()
		}
	}
}

func (m *Model) handleNormalKey(k term.Key) Action {
	switch k.Type {
	case term.KeyUp:
		m.moveUp()
	case term.KeyDown:
		m.moveDown()
	case term.KeyLeft:
		m.setSort(model.SortCPU)
	case term.KeyRight:
		m.setSort(model.SortMem)
	case term.KeyEsc:
		if m.Filter != "" {
			m.Filter = ""
			m.refilter()
		}
	case term.KeyChar:
		switch k.Ch {
		case 'q':
			return ActionQuit
		case 'j':
			m.moveDown()
		case 'k':
			m.moveUp()
		case 'h':
			m.setSort(model.SortCPU)
		case 'l':
			m.setSort(model.SortMem)
		case '/':
			m.Searching = true
			m.Filter = ""
			m.NeedsRender = true
		}
	}
	return ActionNone
}

// moveDown is clamped against the process count at render time.
func (m *Model) moveDown() {
	m.Selection++
	m.NeedsRender = true
}

func (m *Model) moveUp() {
	if m.Selection > 0 {
		m.Selection--
	}
	m.NeedsRender = true
}

func (m *Model) setSort(s model.SortMode) {
	m.Sort = s
	m.NeedsSample = true
}

func (m *Model) refilter() {
	m.Selection = 0
	m.NeedsSample = true
}
