package ui

// quietPresenter drains events and produces no output.
type quietPresenter struct{}

func (p *quietPresenter) Run(events <-chan Event) error {
	for range events {
	}
	return nil
}
