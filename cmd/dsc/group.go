package main

import (
	"fmt"
	"strings"

	"github.com/franz/dataset-curator/internal/groups"
	"github.com/franz/dataset-curator/internal/project"
	"github.com/franz/dataset-curator/internal/util"
	"github.com/spf13/cobra"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage image groups",
	Long: `Manage image groups. An image belongs to at most one group; adding it
to a group moves it out of its previous one. Groups are referenced by id or
by their (case-insensitive, unique) name.`,
}

var groupCreateCmd = &cobra.Command{
	Use:   "create <name> <files...>",
	Short: "Create a group from images",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runGroupCreate,
}

var groupDeleteCmd = &cobra.Command{
	Use:   "delete <group>",
	Short: "Delete a group (its images become ungrouped)",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupDelete,
}

var groupRenameCmd = &cobra.Command{
	Use:   "rename <group> <name>",
	Short: "Rename a group",
	Args:  cobra.ExactArgs(2),
	RunE:  runGroupRename,
}

var groupAddCmd = &cobra.Command{
	Use:   "add <group> <files...>",
	Short: "Move images into a group",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runGroupAdd,
}

var groupRemoveCmd = &cobra.Command{
	Use:   "remove <group> <files...>",
	Short: "Take images out of a group",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runGroupRemove,
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List groups",
	Args:  cobra.NoArgs,
	RunE:  runGroupList,
}

var groupCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report group index inconsistencies (nothing is repaired)",
	Args:  cobra.NoArgs,
	RunE:  runGroupCheck,
}

var groupExpandCmd = &cobra.Command{
	Use:   "expand [group]",
	Short: "Expand one group, or all groups",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGroupExpansion(args, true)
	},
}

var groupCollapseCmd = &cobra.Command{
	Use:   "collapse [group]",
	Short: "Collapse one group, or all groups",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runGroupExpansion(args, false)
	},
}

func init() {
	rootCmd.AddCommand(groupCmd)
	groupCmd.AddCommand(groupCreateCmd, groupDeleteCmd, groupRenameCmd, groupAddCmd,
		groupRemoveCmd, groupListCmd, groupCheckCmd, groupExpandCmd, groupCollapseCmd)
}

// resolveGroup finds a group by id or unique name
func resolveGroup(p *project.Project, ref string) (*groups.Group, error) {
	if g := p.Groups.Group(ref); g != nil {
		return g, nil
	}
	matches := p.Groups.FindByName(ref)
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("group %q: %w", ref, util.ErrNotFound)
	case 1:
		return matches[0], nil
	}
	ids := make([]string, len(matches))
	for i, g := range matches {
		ids[i] = g.ID
	}
	return nil, usageError(fmt.Errorf("group name %q is ambiguous, use an id: %s", ref, strings.Join(ids, ", ")))
}

func runGroupCreate(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	id, err := p.CreateGroup(args[0], args[1:])
	if err != nil {
		return err
	}
	util.SuccessLog("Created group %q (%s) with %d image(s)", args[0], id, len(args)-1)
	return nil
}

func runGroupDelete(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	g, err := resolveGroup(p, args[0])
	if err != nil {
		return err
	}
	name := g.Name
	if err := p.DeleteGroup(g.ID); err != nil {
		return err
	}
	util.SuccessLog("Deleted group %q", name)
	return nil
}

func runGroupRename(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	g, err := resolveGroup(p, args[0])
	if err != nil {
		return err
	}
	if err := p.RenameGroup(g.ID, args[1]); err != nil {
		return err
	}
	util.SuccessLog("Renamed group to %q", args[1])
	return nil
}

func runGroupAdd(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	g, err := resolveGroup(p, args[0])
	if err != nil {
		return err
	}
	if err := p.AddToGroup(g.ID, args[1:]); err != nil {
		return err
	}
	util.SuccessLog("Group %q now has %d image(s)", g.Name, g.Len())
	return nil
}

func runGroupRemove(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	g, err := resolveGroup(p, args[0])
	if err != nil {
		return err
	}
	if err := p.RemoveFromGroup(g.ID, args[1:]); err != nil {
		return err
	}
	util.SuccessLog("Group %q now has %d image(s)", g.Name, g.Len())
	return nil
}

func runGroupList(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	all := p.Groups.All()
	if len(all) == 0 {
		util.InfoLog("No groups")
		return nil
	}
	for _, g := range all {
		state := "expanded"
		if !g.Expanded {
			state = "collapsed"
		}
		fmt.Printf("%-36s  %-24s  %4d  %-9s  %s\n", g.ID, g.Name, g.Len(), state, g.CreatedTimestamp)
	}
	return nil
}

func runGroupCheck(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	issues := p.Groups.ValidateConsistency()
	if len(issues) == 0 {
		util.SuccessLog("Groups are consistent")
		return nil
	}
	for _, issue := range issues {
		util.WarnLog("%s", issue)
	}
	return partialFailure("%d group consistency issue(s)", len(issues))
}

func runGroupExpansion(args []string, expanded bool) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	id := ""
	if len(args) == 1 {
		g, err := resolveGroup(p, args[0])
		if err != nil {
			return err
		}
		id = g.ID
	}
	return p.SetGroupExpanded(id, expanded)
}
