package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nvallinder/audiowalk/internal/guide"
)

// Run starts the now-playing interface and blocks until quit.
func Run(controller *guide.Controller) error {
	p := tea.NewProgram(NewModel(controller))
	_, err := p.Run()
	return err
}
