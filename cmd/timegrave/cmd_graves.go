package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nhle/timegrave/internal/convert"
	"github.com/nhle/timegrave/internal/model"
	"github.com/nhle/timegrave/internal/render"
	"github.com/nhle/timegrave/internal/service"
	"github.com/nhle/timegrave/internal/wizard"
)

var (
	createTitle    string
	createMessage  string
	createOpenDate string
	createFiles    []string

	downloadDir   string
	downloadIndex int
)

var gravesCmd = &cobra.Command{
	Use:     "graves",
	Aliases: []string{"capsules"},
	Short:   "Bury and open time capsules",
}

var gravesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your graveyard",
	Args:  cobra.NoArgs,
	RunE:  runGravesList,
}

var gravesShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a capsule; contents appear once it unlocks",
	Args:  cobra.ExactArgs(1),
	RunE:  runGravesShow,
}

var gravesCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Seal a new capsule",
	Long: `Seals a capsule that opens on --open-date (YYYY-MM-DD). Without --title or
--open-date, an interactive form is shown.

Example:
  timegrave graves create --title "To 2030" --open-date 2030-01-01 --file photo.jpg`,
	Args: cobra.NoArgs,
	RunE: runGravesCreate,
}

var gravesDownloadCmd = &cobra.Command{
	Use:   "download [id]",
	Short: "Save the attachments of an unlocked capsule",
	Args:  cobra.ExactArgs(1),
	RunE:  runGravesDownload,
}

var gravesShareCmd = &cobra.Command{
	Use:   "share [id]",
	Short: "Print the public link of a capsule",
	Args:  cobra.ExactArgs(1),
	RunE:  runGravesShare,
}

func init() {
	gravesCreateCmd.Flags().StringVarP(&createTitle, "title", "t", "", "Capsule title")
	gravesCreateCmd.Flags().StringVarP(&createMessage, "message", "m", "", "Sealed message")
	gravesCreateCmd.Flags().StringVarP(&createOpenDate, "open-date", "d", "", "Unlock day, YYYY-MM-DD")
	gravesCreateCmd.Flags().StringSliceVarP(&createFiles, "file", "f", nil, "File to attach (repeatable)")

	gravesDownloadCmd.Flags().StringVarP(&downloadDir, "out", "o", ".", "Directory to write files into")
	gravesDownloadCmd.Flags().IntVarP(&downloadIndex, "index", "i", 0, "Only download attachment N (1-based)")

	gravesCmd.AddCommand(gravesListCmd)
	gravesCmd.AddCommand(gravesShowCmd)
	gravesCmd.AddCommand(gravesCreateCmd)
	gravesCmd.AddCommand(gravesDownloadCmd)
	gravesCmd.AddCommand(gravesShareCmd)
}

func runGravesList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if _, err := requireSession(ctx); err != nil {
		return err
	}

	capsules, err := env.services.Graves.List(ctx)
	if err != nil {
		return err
	}
	say(cmd, render.CapsuleList(capsules, env.now()))
	return nil
}

func runGravesShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if _, err := requireSession(ctx); err != nil {
		return err
	}

	c, err := env.services.Graves.Get(ctx, args[0])
	if err != nil {
		return err
	}
	say(cmd, render.CapsuleDetail(*c, env.now()))
	return nil
}

func runGravesCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if _, err := requireSession(ctx); err != nil {
		return err
	}

	form := wizard.NewCapsuleForm(env.now())
	form.Prefill(createTitle, createMessage, createOpenDate, createFiles)
	if createTitle == "" || createOpenDate == "" {
		if !interactive() {
			return fmt.Errorf("--title and --open-date are required when not running in a terminal")
		}
		if err := form.Run(ctx); err != nil {
			return err
		}
	}

	in, err := form.Input()
	if err != nil {
		return err
	}

	c, err := env.services.Graves.Create(ctx, in)
	if err != nil {
		return err
	}
	say(cmd, render.SuccessStyle.Render(fmt.Sprintf("Buried %q. It opens on %s.", c.Title, convert.FormatDateToISO(in.OpenDate))))
	say(cmd, render.CapsuleDetail(*c, env.now()))
	return nil
}

func runGravesDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if _, err := requireSession(ctx); err != nil {
		return err
	}

	c, err := env.services.Graves.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if c.IsLocked() {
		return fmt.Errorf("%q is still sealed until %s", c.Title, convert.FormatDateToISO(c.OpenDate))
	}

	contents := c.Contents
	if downloadIndex > 0 {
		if downloadIndex > len(contents) {
			return fmt.Errorf("capsule has %d attachments", len(contents))
		}
		contents = contents[downloadIndex-1 : downloadIndex]
	}
	if len(contents) == 0 {
		say(cmd, render.HelpStyle.Render("This capsule has no attachments."))
		return nil
	}

	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", downloadDir, err)
	}
	for _, content := range contents {
		path, n, err := saveContent(cmd, content)
		if err != nil {
			return err
		}
		say(cmd, fmt.Sprintf("%s %s", path, render.HelpStyle.Render(humanize.Bytes(uint64(n)))))
	}
	return nil
}

func saveContent(cmd *cobra.Command, content model.TimeCapsuleContent) (string, int64, error) {
	name := filepath.Base(content.Name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "attachment-" + content.ID
	}
	path := filepath.Join(downloadDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("creating %s: %w", path, err)
	}
	n, err := env.services.Graves.Download(cmd.Context(), content, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", 0, err
	}
	return path, n, nil
}

func runGravesShare(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if _, err := requireSession(ctx); err != nil {
		return err
	}

	c, err := env.services.Graves.Get(ctx, args[0])
	if err != nil {
		return err
	}
	link, err := service.ShareLink(env.shareBase, *c)
	if err != nil {
		return err
	}
	say(cmd, link)
	return nil
}
