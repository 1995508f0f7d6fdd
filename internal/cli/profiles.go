package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/gabsload/internal/actor"
	"github.com/wesleyorama2/gabsload/internal/output"
	"github.com/wesleyorama2/gabsload/internal/profile"
	"github.com/wesleyorama2/gabsload/internal/scheduler"
)

func newProfilesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles [type]",
		Short: "List the built-in test types, or show one in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if len(args) == 0 {
				output.PrintProfiles(w, profile.All())
				return nil
			}

			p, err := profile.Lookup(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s: %s\n", p.Name, p.Description)
			fmt.Fprintf(w, "Stages: %s\n", scheduler.FormatStages(p.Stages))
			fmt.Fprintf(w, "Max journey duration: %s\n", p.MaxJourneyDuration)
			if len(p.Mix) == 0 {
				fmt.Fprintln(w, "Mix: round robin by slot")
			} else {
				fmt.Fprintf(w, "Mix: customer %d, vendor %d, rider %d\n",
					p.Mix[actor.Customer], p.Mix[actor.Vendor], p.Mix[actor.Rider])
			}
			fmt.Fprintln(w)
			output.PrintThresholds(w, p)
			return nil
		},
	}
}
