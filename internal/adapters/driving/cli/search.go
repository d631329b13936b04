package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/florianmw/bpexplore/internal/core/domain"
)

var (
	searchID      string
	searchContact string
	searchOrg     string
	searchTitle   string
	searchLimit   int
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the cached datasets",
	Long: `Searches the local cache in exactly one mode:

  --id       exact ID lookup across projects, organisations and events
  --contact  fuzzy contact-name search ("Mustermann", "M. Mustermann")
  --org      fuzzy organisation-name search, projects grouped underneath
  --title    fuzzy project/event name search

The flags are mutually exclusive, mirroring the one-active-field search form.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&searchID, "id", "", "entity ID, e.g. 52740")
	searchCmd.Flags().StringVar(&searchContact, "contact", "", "contact name, e.g. \"Detlev Zander\"")
	searchCmd.Flags().StringVar(&searchOrg, "org", "", "organisation name, e.g. \"CARE Deutschland\"")
	searchCmd.Flags().StringVar(&searchTitle, "title", "", "project or event name")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, _ []string) error {
	if queryRouter == nil {
		return errors.New("query router not configured")
	}

	terms := domain.SearchTerms{
		IDTerm:      searchID,
		ContactTerm: searchContact,
		OrgTerm:     searchOrg,
		TitleTerm:   searchTitle,
	}

	result, err := queryRouter.Search(context.Background(), terms)
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		return errors.New("provide exactly one of --id, --contact, --org or --title")
	case errors.Is(err, domain.ErrNotReady):
		cmd.Println("The data for this search mode is still syncing (or failed to sync).")
		cmd.Println("Run \"bpexplore status\" to check, or \"bpexplore sync\" to (re)load it.")
		return nil
	case err != nil:
		return fmt.Errorf("search failed: %w", err)
	}

	if searchLimit > 0 && len(result.Matches) > searchLimit {
		result.Matches = result.Matches[:searchLimit]
	}

	if searchJSON {
		return outputSearchJSON(cmd, result)
	}
	return outputSearchTable(cmd, result)
}

func outputSearchJSON(cmd *cobra.Command, result *domain.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, result *domain.Result) error {
	if len(result.Matches) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Printf("Results (%s search, %dms):\n", result.Mode, result.TookMs)
	cmd.Println()
	for i, match := range result.Matches {
		cmd.Printf("  [%d] %s%s\n", i+1, title(match.Record), flags(match.Record))
		cmd.Printf("      %s %s", match.Record.Kind, match.Record.ID)
		if result.Mode != domain.ModeID {
			cmd.Printf(" (%.2f)", match.Score)
		}
		cmd.Println()
		if match.Record.ContactName != "" {
			cmd.Printf("      Contact: %s\n", match.Record.ContactName)
		}
		if match.Record.Kind != domain.KindOrganisation && match.Record.OrganisationName != "" {
			cmd.Printf("      Organisation: %s\n", match.Record.OrganisationName)
		}
		for _, project := range match.Projects {
			cmd.Printf("      - %s (project %s)%s\n", title(project), project.ID, flags(project))
		}
		cmd.Println()
	}
	return nil
}

// title returns a display name, falling back to the ID.
func title(rec domain.Record) string {
	if rec.Title != "" {
		return rec.Title
	}
	return rec.ID
}

// flags annotates the two independent status flags. Donations prohibited on
// a project that is not closed usually means the carrier organisation's
// tax-exemption notice expired.
func flags(rec domain.Record) string {
	switch {
	case rec.DonationsProhibited && rec.Closed:
		return " [closed, donations prohibited]"
	case rec.DonationsProhibited:
		return " [donations prohibited - possibly expired tax-exemption notice]"
	case rec.Closed:
		return " [closed]"
	default:
		return ""
	}
}
