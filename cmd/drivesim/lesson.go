package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/manualdrive/game/lessons"
)

func lessonCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "lesson",
		Usage:     "list the lessons, or print one",
		ArgsUsage: "[id]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() == 0 {
				for _, s := range lessons.List() {
					fmt.Fprintf(out, "%d. %s\n", s.ID, s.Title)
				}
				return nil
			}

			id, err := strconv.Atoi(cmd.Args().First())
			if err != nil {
				return fmt.Errorf("lesson: %q is not a lesson number", cmd.Args().First())
			}
			lesson, err := lessons.Get(id)
			if err != nil {
				return err
			}
			printLesson(out, lesson)
			return nil
		},
	}
}

func printLesson(out io.Writer, l lessons.Lesson) {
	fmt.Fprintf(out, "Lesson %d: %s\n%s\n\n", l.ID, l.Title, l.Description)
	for i, step := range l.Steps {
		fmt.Fprintf(out, "  %d. %s\n", i+1, step)
	}
	if len(l.Tips) > 0 {
		fmt.Fprintln(out, "\nTips:")
		for _, tip := range l.Tips {
			fmt.Fprintf(out, "  - %s\n", tip)
		}
	}
}
