// Command easy-homey-ctl prints the entities or coordinators of a running
// easy-homey server as a table.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

type state struct {
	UniqueID    string `json:"unique_id"`
	Name        string `json:"name"`
	Coordinator string `json:"coordinator"`
	Value       any    `json:"state"`
	Unit        string `json:"unit_of_measurement"`
	Available   bool   `json:"available"`
}

type status struct {
	Name              string        `json:"name"`
	Interval          time.Duration `json:"interval"`
	LastUpdateSuccess bool          `json:"last_update_success"`
	LastUpdated       time.Time     `json:"last_updated"`
	LastError         string        `json:"last_error"`
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	badStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "easy-homey server address")
	coordinator := flag.String("coordinator", "", "only show entities of this coordinator")
	showCoordinators := flag.Bool("coordinators", false, "show coordinator status instead of entities")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	base := strings.TrimRight(*addr, "/") + "/api/v1"

	var err error
	if *showCoordinators {
		err = printCoordinators(client, base)
	} else {
		err = printEntities(client, base, *coordinator)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, badStyle.Render("error: "+err.Error()))
		os.Exit(1)
	}
}

func getJSON(client *http.Client, endpoint string, out any) error {
	resp, err := client.Get(endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", endpoint, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func entitiesURL(base, coordinator string) string {
	endpoint := base + "/entities"
	if coordinator != "" {
		endpoint += "?" + url.Values{"coordinator": {coordinator}}.Encode()
	}
	return endpoint
}

func printEntities(client *http.Client, base, coordinator string) error {
	var states []state
	if err := getJSON(client, entitiesURL(base, coordinator), &states); err != nil {
		return err
	}

	rows := make([][]string, 0, len(states))
	for _, st := range states {
		rows = append(rows, []string{st.Name, formatValue(st.Value, st.Unit), availability(st.Available), dimStyle.Render(st.UniqueID)})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle()
		}).
		Headers("ENTITY", "STATE", "AVAILABLE", "UNIQUE ID").
		Rows(rows...)
	fmt.Println(t.String())
	return nil
}

func printCoordinators(client *http.Client, base string) error {
	var statuses []status
	if err := getJSON(client, base+"/coordinators", &statuses); err != nil {
		return err
	}

	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		updated := "never"
		if !s.LastUpdated.IsZero() {
			updated = s.LastUpdated.Local().Format(time.DateTime)
		}
		rows = append(rows, []string{s.Name, s.Interval.String(), availability(s.LastUpdateSuccess), updated, s.LastError})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle()
		}).
		Headers("COORDINATOR", "INTERVAL", "OK", "LAST UPDATED", "LAST ERROR").
		Rows(rows...)
	fmt.Println(t.String())
	return nil
}

func formatValue(v any, unit string) string {
	if v == nil {
		return dimStyle.Render("unknown")
	}
	s := fmt.Sprint(v)
	if unit != "" {
		s += " " + unit
	}
	return s
}

func availability(ok bool) string {
	if ok {
		return okStyle.Render("yes")
	}
	return badStyle.Render("no")
}
