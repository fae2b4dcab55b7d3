package main

import (
	"fmt"
	"sort"

	"github.com/franz/dataset-curator/internal/tags"
	"github.com/franz/dataset-curator/internal/util"
	"github.com/spf13/cobra"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage image tags",
	Long: `Manage per-image tags and the tag vocabulary.

Tag arguments may hold several tags separated by ',' or ';'.
Changes are saved immediately: tags.json, the .txt sidecars and the
consolidated description file are rewritten.`,
}

var tagAddCmd = &cobra.Command{
	Use:   "add <file> <tags...>",
	Short: "Add tags to an image",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTagAdd,
}

var tagApplyCmd = &cobra.Command{
	Use:   "apply <file> <tags...>",
	Short: "Replace the tags of an image",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTagApply,
}

var tagRemoveCmd = &cobra.Command{
	Use:   "remove <file> <tag>",
	Short: "Remove a tag from an image",
	Args:  cobra.ExactArgs(2),
	RunE:  runTagRemove,
}

var tagRegisterCmd = &cobra.Command{
	Use:   "register <tag>",
	Short: "Add a tag to the vocabulary without assigning it",
	Args:  cobra.ExactArgs(1),
	RunE:  runTagRegister,
}

var tagDeleteCmd = &cobra.Command{
	Use:   "delete <tag>",
	Short: "Delete a tag from the vocabulary and from every image",
	Args:  cobra.ExactArgs(1),
	RunE:  runTagDelete,
}

var tagListCmd = &cobra.Command{
	Use:   "list [file]",
	Short: "List the vocabulary with usage counts, or the tags of one image",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTagList,
}

var tagMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Parse every description into tags",
	Args:  cobra.NoArgs,
	RunE:  runTagMigrate,
}

var tagExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Rewrite every description from its tags",
	Args:  cobra.NoArgs,
	RunE:  runTagExport,
}

func init() {
	rootCmd.AddCommand(tagCmd)
	tagCmd.AddCommand(tagAddCmd, tagApplyCmd, tagRemoveCmd, tagRegisterCmd, tagDeleteCmd, tagListCmd, tagMigrateCmd, tagExportCmd)

	tagRegisterCmd.Flags().String("category", tags.DefaultCategory, "tag category")
	tagListCmd.Flags().Bool("unused", false, "list only tags no image uses")
}

// parseTagArgs splits every argument on the tag separators
func parseTagArgs(args []string) []string {
	var out []string
	for _, arg := range args {
		out = append(out, tags.ParseTags(arg)...)
	}
	return out
}

func runTagAdd(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	list := parseTagArgs(args[1:])
	if len(list) == 0 {
		return usageError(fmt.Errorf("no tags given"))
	}
	if err := p.AddTags(args[0], list); err != nil {
		return err
	}
	util.SuccessLog("%s: %s", args[0], tags.JoinTags(p.Tags.TagsFor(args[0])))
	return nil
}

func runTagApply(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	if err := p.ApplyTags(args[0], parseTagArgs(args[1:])); err != nil {
		return err
	}
	util.SuccessLog("%s: %s", args[0], tags.JoinTags(p.Tags.TagsFor(args[0])))
	return nil
}

func runTagRemove(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	if err := p.RemoveTag(args[0], args[1]); err != nil {
		return err
	}
	util.SuccessLog("Removed %q from %s", args[1], args[0])
	return nil
}

func runTagRegister(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	category, _ := cmd.Flags().GetString("category")
	tag, err := p.RegisterTag(args[0], category)
	if err != nil {
		return usageError(err)
	}
	util.SuccessLog("Registered %q in %s", tag, category)
	return nil
}

func runTagDelete(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	count := p.Tags.ImageCountForTag(args[0])
	if err := p.DeleteTag(args[0]); err != nil {
		return err
	}
	util.SuccessLog("Deleted %q (was used by %d image(s))", args[0], count)
	return nil
}

func runTagList(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}

	if len(args) == 1 {
		rec := p.Catalog.Lookup(args[0])
		if rec == nil {
			return fmt.Errorf("image %q: %w", args[0], util.ErrNotFound)
		}
		for _, tag := range p.Tags.TagsFor(rec.Filename) {
			fmt.Println(tag)
		}
		return nil
	}

	unusedOnly, _ := cmd.Flags().GetBool("unused")
	if unusedOnly {
		for _, tag := range p.Tags.UnusedTags() {
			fmt.Println(tag)
		}
		return nil
	}

	categories := p.Tags.Categories()
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	sort.Strings(names)

	keyword := p.Tags.Keyword()
	for _, category := range names {
		fmt.Printf("[%s]\n", category)
		list := append([]string(nil), categories[category]...)
		sort.Strings(list)
		for _, tag := range list {
			marker := " "
			if tag == keyword {
				marker = "*"
			}
			fmt.Printf("  %s %-40s %5d\n", marker, tag, p.Tags.ImageCountForTag(tag))
		}
	}
	return nil
}

func runTagMigrate(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	n, err := p.MigrateFromDescriptions()
	if err != nil {
		return err
	}
	util.SuccessLog("Migrated %d description(s) to tags", n)
	return nil
}

func runTagExport(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	n, err := p.ExportToDescriptions()
	if err != nil {
		return err
	}
	util.SuccessLog("Exported tags to %d description(s)", n)
	return nil
}

var keywordCmd = &cobra.Command{
	Use:   "keyword",
	Short: "Show or change the keyword tag (always listed first)",
	Args:  cobra.NoArgs,
	RunE:  runKeywordShow,
}

var keywordSetCmd = &cobra.Command{
	Use:   "set <tag>",
	Short: "Make a registered tag the keyword",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeywordSet,
}

var keywordClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the keyword",
	Args:  cobra.NoArgs,
	RunE:  runKeywordClear,
}

var keywordToggleCmd = &cobra.Command{
	Use:   "toggle <tag>",
	Short: "Set the keyword, or clear it when the tag already is the keyword",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeywordToggle,
}

func init() {
	rootCmd.AddCommand(keywordCmd)
	keywordCmd.AddCommand(keywordSetCmd, keywordClearCmd, keywordToggleCmd)
}

func runKeywordShow(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	if kw := p.Tags.Keyword(); kw != "" {
		fmt.Println(kw)
	} else {
		util.InfoLog("No keyword set")
	}
	return nil
}

func runKeywordSet(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	if err := p.SetKeyword(args[0]); err != nil {
		return err
	}
	util.SuccessLog("Keyword set to %q", p.Tags.Keyword())
	return nil
}

func runKeywordClear(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	if err := p.ClearKeyword(); err != nil {
		return err
	}
	util.SuccessLog("Keyword cleared")
	return nil
}

func runKeywordToggle(cmd *cobra.Command, args []string) error {
	p, err := openProject()
	if err != nil {
		return err
	}
	if err := p.ToggleKeyword(args[0]); err != nil {
		return err
	}
	if kw := p.Tags.Keyword(); kw != "" {
		util.SuccessLog("Keyword set to %q", kw)
	} else {
		util.SuccessLog("Keyword cleared")
	}
	return nil
}
