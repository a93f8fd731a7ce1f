package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ayusman/formrep/internal/store"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage threshold profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List threshold profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := db.Profiles().List()
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			fmt.Println("No profiles. Create one with: formrep profile add NAME")
			return nil
		}

		activeID := ""
		if p, err := db.ActiveProfile(); err == nil {
			activeID = p.ID
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "\tNAME\tDOWN\tUP\tHIP TOL\tSIDE\tMIN CONF")
		for _, p := range profiles {
			marker := ""
			if p.ID == activeID {
				marker = "*"
			}
			fmt.Fprintf(tw, "%s\t%s\t%.0f\t%.0f\t%.0f\t%s\t%.2f\n",
				marker, p.Name, p.ElbowDownMax, p.ElbowUpMin, p.HipTolerance, p.Side, p.MinConfidence)
		}
		return tw.Flush()
	},
}

var profileAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Save the current thresholds as a named profile",
	Long: `Add stores the thresholds resolved from the defaults, FORMREP_* variables
and the --elbow-down, --elbow-up, --hip-tolerance, --side and --min-confidence
flags under NAME.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if _, err := db.Profiles().GetByName(name); err == nil {
			return fmt.Errorf("profile %q already exists", name)
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		p := cfg.ProfileFrom(uuid.New().String(), name)
		if err := db.Profiles().Create(p); err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		fmt.Printf("Created profile %q (down %.0f°, up %.0f°, hip tolerance %.0f°)\n",
			p.Name, p.ElbowDownMax, p.ElbowUpMin, p.HipTolerance)
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use NAME",
	Short: "Make a profile the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := lookupProfile(args[0])
		if err != nil {
			return err
		}
		if err := db.SetActiveProfile(p.ID); err != nil {
			return err
		}
		fmt.Printf("Active profile: %s\n", p.Name)
		return nil
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:     "delete NAME",
	Aliases: []string{"rm"},
	Short:   "Delete a profile and its hooks",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := lookupProfile(args[0])
		if err != nil {
			return err
		}
		if err := db.Profiles().Delete(p.ID); err != nil {
			return err
		}
		fmt.Printf("Deleted profile %s\n", p.Name)
		return nil
	},
}

func lookupProfile(name string) (*store.Profile, error) {
	p, err := db.Profiles().GetByName(name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("profile %q not found", name)
	}
	return p, err
}

func init() {
	profileCmd.AddCommand(profileListCmd, profileAddCmd, profileUseCmd, profileDeleteCmd)
	rootCmd.AddCommand(profileCmd)
}
