package main

import (
	"fmt"
	"strings"

	"github.com/franz/dataset-curator/internal/groups"
	"github.com/franz/dataset-curator/internal/project"
	"github.com/franz/dataset-curator/internal/sidecar"
	"github.com/franz/dataset-curator/internal/tags"
	"github.com/franz/dataset-curator/internal/util"
	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load <folder>",
	Short: "Open a dataset folder and report what was found",
	Long: `Open a dataset folder: list its images, read descriptions from the
legacy JSON description file or the .txt sidecars, and load tags.json and
groups.json.

Folders without tags.json have their descriptions parsed into tags. Use
--save to write the project files right away.`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Write tags.json, groups.json and all description sidecars",
	Args:  cobra.NoArgs,
	RunE:  runSave,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "List the images in display order",
	Long: `List the images of the dataset in display order: groups first (sorted
by name, collapsed groups show only their header), then ungrouped images.`,
	Args: cobra.NoArgs,
	RunE: runShow,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show description, tag and group statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var describeCmd = &cobra.Command{
	Use:   "describe <file> <text...>",
	Short: "Set the description of an image",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runDescribe,
}

var appendCmd = &cobra.Command{
	Use:   "append <word>",
	Short: "Append a word to every description (a tag in tag mode)",
	Long: `Append a word to every description, or only to the images named with
--files. In tag mode the word is parsed into tags and added to each image.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runAppend,
}

var removeCmd = &cobra.Command{
	Use:   "remove <file>",
	Short: "Remove an image from the project",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func init() {
	rootCmd.AddCommand(loadCmd, saveCmd, showCmd, statsCmd, describeCmd, appendCmd, removeCmd)

	loadCmd.Flags().Bool("save", false, "write the project files after loading")
	appendCmd.Flags().StringSlice("files", nil, "limit the append to these images (default: all)")
	showCmd.Flags().Bool("all", false, "show members of collapsed groups too")
	removeCmd.Flags().Bool("from-disk", false, "also delete the image file and its .txt sidecar")
}

func runLoad(cmd *cobra.Command, args []string) error {
	p, result, err := project.Open(args[0], project.Options{Retry: retryConfig()})
	if err != nil {
		return usageError(fmt.Errorf("failed to open %s: %w", args[0], err))
	}

	util.InfoLog("=== %s ===", p.Folder())
	util.InfoLog("Images: %d", result.Images)
	util.InfoLog("tags.json: %s", foundString(result.TagsFound))
	util.InfoLog("groups.json: %s", foundString(result.GroupsFound))
	if result.Migrated > 0 {
		util.InfoLog("Descriptions migrated to tags: %d", result.Migrated)
	}
	if result.TagMode {
		util.InfoLog("Mode: tags")
	} else {
		util.InfoLog("Mode: free-text descriptions")
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		return saveProject(p)
	}
	return nil
}

func foundString(found bool) string {
	if found {
		return "found"
	}
	return "not found"
}

func runSave(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	return saveProject(p)
}

func saveProject(p *project.Project) error {
	result, err := p.Save()
	if err != nil {
		return fmt.Errorf("failed to save: %w", err)
	}
	util.SuccessLog("Saved %d description(s) to %s", result.TextWritten, sidecar.ConsolidatedName(p.Folder()))
	if result.TextRemoved > 0 {
		util.InfoLog("Removed %d stale .txt file(s)", result.TextRemoved)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	showAll, _ := cmd.Flags().GetBool("all")

	for _, entry := range p.DisplayOrder() {
		switch entry.Kind {
		case groups.KindGroup:
			g := p.Groups.Group(entry.Data)
			marker := "▾"
			if !g.Expanded {
				marker = "▸"
			}
			fmt.Printf("%s %s (%d)  [%s]\n", marker, g.Name, g.Len(), g.ID)
			if !g.Expanded && showAll {
				for _, name := range g.ImageFilenames {
					printImage(p, name, "    ")
				}
			}
		case groups.KindImage:
			indent := ""
			if entry.Member {
				indent = "    "
			}
			printImage(p, entry.Data, indent)
		}
	}
	return nil
}

func printImage(p *project.Project, filename, indent string) {
	rec := p.Catalog.Lookup(filename)
	if rec == nil {
		return
	}
	text := rec.Description
	if p.TagMode() {
		text = tags.JoinTags(p.Tags.TagsFor(filename))
	}
	if text == "" {
		text = "-"
	}
	fmt.Printf("%s%4d  %-32s  %s\n", indent, rec.DisplayIndex, filename, truncate(text, 80))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func runStats(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	stats := p.Stats()

	fmt.Println("=== Images ===")
	fmt.Printf("Total:                %d\n", stats.Catalog.TotalImages)
	fmt.Printf("With description:     %d\n", stats.Catalog.WithDescriptions)
	fmt.Printf("Without description:  %d\n", stats.Catalog.WithoutDescriptions)
	fmt.Printf("Average length:       %.1f\n", stats.Catalog.AvgDescriptionLength)
	fmt.Println()
	fmt.Println("=== Tags ===")
	fmt.Printf("Known tags:           %d\n", stats.Tags.TotalTags)
	fmt.Printf("Tagged images:        %d\n", stats.Tags.ImagesWithTags)
	fmt.Printf("Assignments:          %d\n", stats.Tags.TotalTagAssignments)
	fmt.Printf("Unused tags:          %d\n", stats.Tags.UnusedTags)
	if kw := p.Tags.Keyword(); kw != "" {
		fmt.Printf("Keyword:              %s\n", kw)
	}
	fmt.Println()
	fmt.Println("=== Groups ===")
	fmt.Printf("Groups:               %d\n", stats.Groups.TotalGroups)
	fmt.Printf("Grouped images:       %d\n", stats.Groups.TotalGroupedImages)
	fmt.Printf("Largest group:        %d\n", stats.Groups.LargestGroupSize)
	fmt.Printf("Average group size:   %d\n", stats.Groups.AverageGroupSize)
	return nil
}

func runDescribe(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	if err := p.UpdateDescription(args[0], strings.Join(args[1:], " ")); err != nil {
		return err
	}
	util.SuccessLog("Updated %s", args[0])
	return nil
}

func runAppend(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	files, _ := cmd.Flags().GetStringSlice("files")
	n, err := p.AppendKeyword(args[0], files)
	if err != nil {
		return err
	}
	util.SuccessLog("Appended %q to %d image(s)", args[0], n)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	fromDisk, _ := cmd.Flags().GetBool("from-disk")
	if err := p.RemoveImage(args[0], fromDisk); err != nil {
		return err
	}
	if fromDisk {
		util.SuccessLog("Deleted %s", args[0])
	} else {
		util.SuccessLog("Removed %s from the project", args[0])
	}
	return nil
}
