package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yash-srivastava19/canopy/internal/bucket"
	"github.com/yash-srivastava19/canopy/internal/display"
	"github.com/yash-srivastava19/canopy/internal/export"
	"github.com/yash-srivastava19/canopy/internal/filter"
	"github.com/yash-srivastava19/canopy/internal/notes"
	"github.com/yash-srivastava19/canopy/internal/settings"
	"github.com/yash-srivastava19/canopy/internal/templates"
)

// withRuntime wraps a one-shot command body.
func withRuntime(o *rootOptions, fn func(ctx context.Context, r *runtime, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		r, err := openRuntime(o, logOneShot)
		if err != nil {
			return err
		}
		defer r.Close()
		return fn(cmd.Context(), r, args)
	}
}

func shortID(id string) string {
	if len(id) == 36 && strings.Count(id, "-") == 4 {
		return id[:8]
	}
	return id
}

func printNotes(list []notes.Note) {
	tbl := uitable.New()
	tbl.MaxColWidth = 60
	tbl.Separator = "  "
	bold := color.New(color.Bold)
	tbl.AddRow(bold.Sprint("ID"), bold.Sprint("TITLE"), bold.Sprint("TAGS"), bold.Sprint("MODIFIED"))
	for _, n := range list {
		title := display.Title(n.Content)
		if n.Pinned() {
			title = color.YellowString("★ ") + title
		}
		tags := ""
		if len(n.Tags) > 0 {
			tags = "#" + strings.Join(n.Tags, " #")
		}
		tbl.AddRow(shortID(n.ID), title, color.BlueString(tags), n.Modified.Local().Format("2006-01-02 15:04"))
	}
	_, _ = fmt.Fprintln(color.Output, tbl)
}

type listOptions struct {
	trash   bool
	tag     string
	sort    string
	reverse bool
}

func (lo listOptions) filter(r *runtime, query string) filter.Options {
	st, err := settings.NewStore(r.cfg.SettingsFile()).Load()
	if err != nil {
		r.logger.Warn("load settings", "err", err)
		st = settings.Defaults()
	}
	s := filter.Sort{Type: st.SortType, Reversed: st.SortReversed != lo.reverse}
	if lo.sort != "" {
		s.Type = filter.ParseSortType(lo.sort)
	}
	return filter.Options{
		ShowTrash: lo.trash,
		Tag:       lo.tag,
		Query:     query,
		Sort:      s,
		Mode:      r.searchMode(),
	}
}

func addListFlags(cmd *cobra.Command, lo *listOptions) {
	cmd.Flags().BoolVar(&lo.trash, "trash", false, "Show trashed notes instead.")
	cmd.Flags().StringVar(&lo.tag, "tag", "", "Only notes with this tag.")
	cmd.Flags().StringVar(&lo.sort, "sort", "", "modificationDate, creationDate or alphabetical.")
	cmd.Flags().BoolVarP(&lo.reverse, "reverse", "r", false, "Reverse the sort order.")
}

func addList(topLevel *cobra.Command, o *rootOptions) {
	lo := &listOptions{}
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List notes.",
		Args:    cobra.NoArgs,
		RunE: withRuntime(o, func(ctx context.Context, r *runtime, _ []string) error {
			all, err := r.notes.List(ctx)
			if err != nil {
				return err
			}
			printNotes(filter.Apply(all, lo.filter(r, "")))
			return nil
		}),
	}
	addListFlags(cmd, lo)
	topLevel.AddCommand(cmd)
}

func addSearch(topLevel *cobra.Command, o *rootOptions) {
	lo := &listOptions{}
	cmd := &cobra.Command{
		Use:     "search <query>",
		Aliases: []string{"s"},
		Short:   "Search notes.",
		Example: `
canopy search release notes
canopy search --tag work standup
`,
		Args: cobra.MinimumNArgs(1),
		RunE: withRuntime(o, func(ctx context.Context, r *runtime, args []string) error {
			all, err := r.notes.List(ctx)
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			found := filter.Apply(all, lo.filter(r, query))
			if len(found) == 0 {
				return fmt.Errorf("no notes match %q", query)
			}
			printNotes(found)
			return nil
		}),
	}
	addListFlags(cmd, lo)
	topLevel.AddCommand(cmd)
}

func addShow(topLevel *cobra.Command, o *rootOptions) {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a note, rendered as markdown on a terminal.",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(o, func(ctx context.Context, r *runtime, args []string) error {
			n, err := r.findNote(ctx, args[0])
			if err != nil {
				return err
			}
			if raw || !term.IsTerminal(int(os.Stdout.Fd())) {
				fmt.Print(n.Content)
				return nil
			}
			width, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err != nil || width <= 0 {
				width = 80
			}
			tr, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width-2))
			if err != nil {
				return err
			}
			out, err := tr.Render(n.Content)
			if err != nil {
				return err
			}
			if len(n.Tags) > 0 {
				fmt.Println(color.BlueString("  #" + strings.Join(n.Tags, " #")))
			}
			fmt.Print(out)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the markdown source.")
	topLevel.AddCommand(cmd)
}

func addNew(topLevel *cobra.Command, o *rootOptions) {
	var (
		tmpl   string
		tags   []string
		noEdit bool
	)
	cmd := &cobra.Command{
		Use:     "new <title>",
		Aliases: []string{"n"},
		Short:   "Create a note and open it in $EDITOR.",
		Example: fmt.Sprintf(`
canopy new "Sprint planning" --template meeting --tag work

Templates: %s
`, strings.Join(templates.Names, ", ")),
		Args: cobra.MinimumNArgs(1),
		RunE: withRuntime(o, func(ctx context.Context, r *runtime, args []string) error {
			title := strings.Join(args, " ")
			data := templates.Data{Title: title}
			if len(tags) > 0 {
				data.Tag = tags[0]
			}
			body, err := templates.Render(tmpl, data)
			if err != nil {
				return err
			}
			n, err := r.notes.Put(ctx, notes.Note{Content: body, Tags: tags})
			if err != nil {
				return err
			}
			if err := r.ensureTags(ctx, tags); err != nil {
				return err
			}
			fmt.Println(shortID(n.ID))
			if noEdit {
				return nil
			}
			return launchEditor(r.cfg.Editor, r.notes.Path(n.ID))
		}),
	}
	cmd.Flags().StringVarP(&tmpl, "template", "t", "blank", "Template to start from.")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag the note (repeatable).")
	cmd.Flags().BoolVar(&noEdit, "no-edit", false, "Do not open the editor.")
	topLevel.AddCommand(cmd)
}

func dailyID(t time.Time) string {
	return "daily-" + t.Format("2006-01-02")
}

// daily returns today's note, creating it from the daily template.
func (r *runtime) daily(ctx context.Context) (notes.Note, error) {
	now := time.Now()
	n, err := r.notes.Get(ctx, dailyID(now))
	if err == nil {
		return n, nil
	}
	if !errors.Is(err, bucket.ErrNotFound) {
		return notes.Note{}, err
	}
	body, err := templates.Render("daily", templates.Data{Date: now})
	if err != nil {
		return notes.Note{}, err
	}
	if err := r.ensureTags(ctx, []string{"daily"}); err != nil {
		return notes.Note{}, err
	}
	return r.notes.Put(ctx, notes.Note{ID: dailyID(now), Content: body, Tags: []string{"daily"}})
}

func addToday(topLevel *cobra.Command, o *rootOptions) {
	cmd := &cobra.Command{
		Use:     "today",
		Aliases: []string{"t"},
		Short:   "Open today's daily note in $EDITOR.",
		Args:    cobra.NoArgs,
		RunE: withRuntime(o, func(ctx context.Context, r *runtime, _ []string) error {
			n, err := r.daily(ctx)
			if err != nil {
				return err
			}
			return launchEditor(r.cfg.Editor, r.notes.Path(n.ID))
		}),
	}
	topLevel.AddCommand(cmd)
}

func addAppend(topLevel *cobra.Command, o *rootOptions) {
	cmd := &cobra.Command{
		Use:     "add <text>",
		Aliases: []string{"a"},
		Short:   "Append a quick thought to today's note.",
		Args:    cobra.MinimumNArgs(1),
		RunE: withRuntime(o, func(ctx context.Context, r *runtime, args []string) error {
			n, err := r.daily(ctx)
			if err != nil {
				return err
			}
			line := fmt.Sprintf("- %s %s\n", time.Now().Format("15:04"), strings.Join(args, " "))
			if !strings.HasSuffix(n.Content, "\n") {
				n.Content += "\n"
			}
			n.Content += line
			n.Modified = time.Now().UTC()
			if _, err := r.notes.Put(ctx, n); err != nil {
				return err
			}
			fmt.Printf("added to %s\n", n.ID)
			return nil
		}),
	}
	topLevel.AddCommand(cmd)
}

func addEdit(topLevel *cobra.Command, o *rootOptions) {
	cmd := &cobra.Command{
		Use:     "edit <id>",
		Aliases: []string{"e"},
		Short:   "Open a note in $EDITOR.",
		Args:    cobra.ExactArgs(1),
		RunE: withRuntime(o, func(ctx context.Context, r *runtime, args []string) error {
			n, err := r.findNote(ctx, args[0])
			if err != nil {
				return err
			}
			return launchEditor(r.cfg.Editor, r.notes.Path(n.ID))
		}),
	}
	topLevel.AddCommand(cmd)
}

// addTrash adds trash, restore and rm.
func addTrash(topLevel *cobra.Command, o *rootOptions) {
	setDeleted := func(deleted bool) func(context.Context, *runtime, []string) error {
		return func(ctx context.Context, r *runtime, args []string) error {
			n, err := r.findNote(ctx, args[0])
			if err != nil {
				return err
			}
			if n.Deleted == deleted {
				return nil
			}
			n.Deleted = deleted
			n.Modified = time.Now().UTC()
			_, err = r.notes.Put(ctx, n)
			return err
		}
	}
	topLevel.AddCommand(&cobra.Command{
		Use:   "trash <id>",
		Short: "Move a note to the trash.",
		Args:  cobra.ExactArgs(1),
		RunE:  withRuntime(o, setDeleted(true)),
	})
	topLevel.AddCommand(&cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a note from the trash.",
		Args:  cobra.ExactArgs(1),
		RunE:  withRuntime(o, setDeleted(false)),
	})

	var force bool
	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a trashed note forever.",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(o, func(ctx context.Context, r *runtime, args []string) error {
			n, err := r.findNote(ctx, args[0])
			if err != nil {
				return err
			}
			if !n.Deleted && !force {
				return fmt.Errorf("%s is not in the trash (use --force)", shortID(n.ID))
			}
			return r.notes.Remove(ctx, n.ID)
		}),
	}
	rm.Flags().BoolVarP(&force, "force", "f", false, "Delete even if not trashed.")
	topLevel.AddCommand(rm)
}

func addHistory(topLevel *cobra.Command, o *rootOptions) {
	cmd := &cobra.Command{
		Use:   "history <id>",
		Short: "List earlier versions of a note.",
		Args:  cobra.ExactArgs(1),
		RunE: withRuntime(o, func(ctx context.Context, r *runtime, args []string) error {
			n, err := r.findNote(ctx, args[0])
			if err != nil {
				return err
			}
			revs, err := r.notes.Revisions(ctx, n.ID)
			if err != nil {
				return err
			}
			tbl := uitable.New()
			tbl.Separator = "  "
			tbl.AddRow("VERSION", "MODIFIED", "TITLE")
			for _, rev := range append(revs, n) {
				tbl.AddRow(rev.Version, rev.Modified.Local().Format("2006-01-02 15:04"), display.Title(rev.Content))
			}
			_, _ = fmt.Fprintln(color.Output, tbl)
			return nil
		}),
	}
	topLevel.AddCommand(cmd)
}

func addTags(topLevel *cobra.Command, o *rootOptions) {
	var alpha bool
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List tags with their note counts.",
		Args:  cobra.NoArgs,
		RunE: withRuntime(o, func(ctx context.Context, r *runtime, _ []string) error {
			tags, err := r.tags.List(ctx)
			if err != nil {
				return err
			}
			all, err := r.notes.List(ctx)
			if err != nil {
				return err
			}
			notes.SortTags(tags, alpha)
			tbl := uitable.New()
			tbl.Separator = "  "
			for _, t := range tags {
				count := 0
				for _, n := range all {
					if !n.Deleted && n.HasTag(t.Name) {
						count++
					}
				}
				tbl.AddRow(color.BlueString("#"+t.Name), count)
			}
			_, _ = fmt.Fprintln(color.Output, tbl)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&alpha, "alpha", false, "Sort alphabetically instead of by rank.")
	topLevel.AddCommand(cmd)
}

func addStats(topLevel *cobra.Command, o *rootOptions) {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show note statistics.",
		Args:  cobra.NoArgs,
		RunE: withRuntime(o, func(ctx context.Context, r *runtime, _ []string) error {
			all, err := r.notes.List(ctx)
			if err != nil {
				return err
			}
			live := filter.Apply(all, filter.Options{Sort: filter.Sort{Type: filter.SortCreated}})
			if len(live) == 0 {
				fmt.Println("no notes yet")
				return nil
			}

			totalWords := 0
			tagCount := map[string]int{}
			for _, n := range live {
				totalWords += len(strings.Fields(n.Content))
				for _, t := range n.Tags {
					tagCount[strings.ToLower(t)]++
				}
			}

			type tagFreq struct {
				tag   string
				count int
			}
			var tagList []tagFreq
			for t, c := range tagCount {
				tagList = append(tagList, tagFreq{t, c})
			}
			sort.Slice(tagList, func(i, j int) bool {
				if tagList[i].count != tagList[j].count {
					return tagList[i].count > tagList[j].count
				}
				return tagList[i].tag < tagList[j].tag
			})
			if len(tagList) > 5 {
				tagList = tagList[:5]
			}

			tbl := uitable.New()
			tbl.AddRow("notes:", len(live))
			tbl.AddRow("trashed:", len(all)-len(live))
			tbl.AddRow("words:", totalWords)
			tbl.AddRow("oldest note:", display.Title(live[0].Content))
			tbl.AddRow("newest note:", display.Title(live[len(live)-1].Content))
			if len(tagList) > 0 {
				parts := make([]string, len(tagList))
				for i, tf := range tagList {
					parts[i] = fmt.Sprintf("%s (%d)", tf.tag, tf.count)
				}
				tbl.AddRow("top tags:", strings.Join(parts, ", "))
			}
			_, _ = fmt.Fprintln(color.Output, tbl)
			return nil
		}),
	}
	topLevel.AddCommand(cmd)
}

func addExport(topLevel *cobra.Command, o *rootOptions) {
	cmd := &cobra.Command{
		Use:   "export [path]",
		Short: "Write every note to a zip archive.",
		Args:  cobra.MaximumNArgs(1),
		RunE: withRuntime(o, func(ctx context.Context, r *runtime, args []string) error {
			path := defaultExportPath(r.cfg)
			if len(args) == 1 {
				path = args[0]
			}
			all, err := r.notes.List(ctx)
			if err != nil {
				return err
			}
			data, err := export.Archive(ctx, all)
			if err != nil {
				return err
			}
			if err := export.WriteFile(path, data); err != nil {
				return err
			}
			fmt.Printf("exported %d notes to %s\n", len(all), color.GreenString(path))
			return nil
		}),
	}
	topLevel.AddCommand(cmd)
}

const welcome = `# Welcome to canopy

Your notes in the terminal. Every note is a plain markdown file, yours forever.

## Quick start

| Key | Action |
|-----|--------|
| **n** | new note |
| **e** | edit in $EDITOR |
| **/** | search |
| **#** | filter by tag |
| **d** | move to trash |
| **T** | show the trash |
| **tab** | tag sidebar |
| **,** | settings |
| **?** | about and keys |

## From the command line

` + "```sh" + `
canopy today                          # open today's daily note
canopy add "idea"                     # append a quick thought to it
canopy new --template meeting "Title" # start from a template
canopy list --tag work                # list notes
canopy export notes.zip               # archive everything
` + "```" + `
`

// ensureWelcome seeds an empty notes directory with a welcome note.
func ensureWelcome(ctx context.Context, r *runtime) {
	all, err := r.notes.List(ctx)
	if err != nil || len(all) > 0 {
		return
	}
	n := notes.Note{Content: welcome, Tags: []string{"canopy"}}
	n.SetSystemTag(notes.SystemPinned, true)
	n.SetSystemTag(notes.SystemMarkdown, true)
	if _, err := r.notes.Put(ctx, n); err != nil {
		r.logger.Warn("create welcome note", "err", err)
		return
	}
	if err := r.ensureTags(ctx, n.Tags); err != nil {
		r.logger.Warn("create welcome tag", "err", err)
	}
}
