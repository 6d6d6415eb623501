package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"protocoldesk/internal/export"
	"protocoldesk/internal/render"
)

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored protocols",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := openService(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			protocols, err := svc.ListProtocols(cmd.Context())
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(a.out)
			table.Header("ID", "№", "Дата", "Название", "Секретарь", "Строк")
			for _, p := range protocols {
				row := []string{
					strconv.FormatInt(p.ID, 10),
					strconv.Itoa(p.Number),
					p.Date,
					p.Name,
					p.Secretary,
					strconv.Itoa(render.Count(p.Rows)),
				}
				if err := table.Append(row); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}

func (a *app) showCmd() *cobra.Command {
	var id int64
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a protocol as a table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := openService(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			p, err := svc.GetProtocol(cmd.Context(), id)
			if err != nil {
				return err
			}
			return render.PrintTable(a.out, p)
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "protocol id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var (
		id  int64
		out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a protocol to an xlsx workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := openService(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()

			p, err := svc.GetProtocol(cmd.Context(), id)
			if err != nil {
				return err
			}
			payload, err := export.Workbook(p)
			if err != nil {
				return fmt.Errorf("render workbook: %w", err)
			}
			path := out
			if path == "" {
				path = export.FileName(p.Number)
			} else if info, err := os.Stat(path); err == nil && info.IsDir() {
				path = filepath.Join(path, export.FileName(p.Number))
			}
			if err := os.WriteFile(path, payload, 0o644); err != nil {
				return fmt.Errorf("write workbook: %w", err)
			}
			_, err = fmt.Fprintln(a.out, path)
			return err
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "protocol id")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file or directory (default: protocol file name in the working directory)")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}
