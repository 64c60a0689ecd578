// Package setup implements the first-run terminal configuration wizard.
package setup

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/vadiminshakov/stashd/config"
	"github.com/vadiminshakov/stashd/internal/domain"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

func clearAndHeader(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("STASHD CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and writes the result
// to path as YAML.
func RunTUI(path string) error {
	conf := config.Default()

	var (
		intervalStr = strconv.Itoa(conf.RefreshIntervalMinutes)
		currencyStr = strconv.Itoa(conf.Currency)
		snapshotAt  = conf.SnapshotTimeOfDay
		confirm     bool
	)

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("STASHD CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Track your stash without refreshing a browser tab.\n"))

	fmt.Println(stepStyle.Render("STEP 1: PRICE SOURCE"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose the price source").
				Options(
					huh.NewOption("Steam community market", "steam"),
					huh.NewOption("Simulation (offline random walk)", "simulate"),
				).
				Value(&conf.Source),
		),
	).Run()
	if err != nil {
		return err
	}

	if conf.Source == "steam" {
		clearAndHeader("STEP 2: CURRENCY")
		err = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Steam currency code").
					Description("3 is EUR, 1 is USD").
					Value(&currencyStr).
					Validate(func(s string) error {
						_, err := strconv.Atoi(s)
						return err
					}),
			),
		).Run()
		if err != nil {
			return err
		}
	}

	clearAndHeader("STEP 3: TIMING")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Refresh interval (minutes)").
				Description("How often the whole collection is re-priced").
				Value(&intervalStr).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil {
						return err
					}
					if n < 1 {
						return fmt.Errorf("interval must be at least 1 minute")
					}
					return nil
				}),
			huh.NewInput().
				Title("Daily snapshot time").
				Description("Local HH:MM, e.g. 19:00").
				Value(&snapshotAt).
				Validate(func(s string) error {
					settings := domain.Settings{SnapshotTimeOfDay: s}
					_, _, err := settings.SnapshotClock()
					return err
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	clearAndHeader("STEP 4: SURFACES")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Status server address").
				Description("e.g. :8080, leave empty to disable").
				Value(&conf.WebAddr),
			huh.NewInput().
				Title("Remote sync endpoint").
				Description("Base URL of the backup service, leave empty to disable").
				Value(&conf.SyncEndpoint),
		),
	).Run()
	if err != nil {
		return err
	}

	conf.RefreshIntervalMinutes, _ = strconv.Atoi(intervalStr)
	conf.Currency, _ = strconv.Atoi(currencyStr)
	conf.SnapshotTimeOfDay = snapshotAt

	clearAndHeader("REVIEW")
	fmt.Printf("  source:            %s\n", conf.Source)
	fmt.Printf("  refresh interval:  %d min\n", conf.RefreshIntervalMinutes)
	fmt.Printf("  snapshot time:     %s\n", conf.SnapshotTimeOfDay)
	fmt.Printf("  web addr:          %s\n", orNone(conf.WebAddr))
	fmt.Printf("  sync endpoint:     %s\n", orNone(conf.SyncEndpoint))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Write %s?", path)).
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup aborted")
	}

	if err := conf.Save(path); err != nil {
		return err
	}
	fmt.Println(lipgloss.NewStyle().Foreground(special).Render("Config written. Start the daemon with: stashd --config " + path))
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(disabled)"
	}
	return s
}
