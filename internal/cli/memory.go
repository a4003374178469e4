package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lazygophers/ccmem/internal/core/memory"
	"github.com/lazygophers/ccmem/internal/ports/primary"
	"github.com/lazygophers/ccmem/internal/wire"
)

// CreateCmd returns the create command
func CreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <uri> <content>",
		Short: "Create a memory, or update the one with the same URI",
		Long: `Create a memory at uri. Recreating an existing uri updates it in place
and snapshots the previous content as a new version when it changed.

Examples:
  ccmem create project://structure "monorepo" --priority 1
  ccmem create user://editor "vim" --disclosure "when editing" --meta source=manual`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			disclosure, _ := cmd.Flags().GetString("disclosure")
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				_, err := a.MemoryAdapter(cmd.OutOrStdout()).Create(ctx, primary.CreateMemoryRequest{
					URI:        args[0],
					Content:    args[1],
					Priority:   optionalInt(cmd, "priority"),
					Disclosure: disclosure,
					Metadata:   metadataFlag(cmd),
				})
				return err
			})
		},
	}
	cmd.Flags().Int("priority", memory.PriorityDefault, "Priority 0-10, lower is more important")
	cmd.Flags().String("disclosure", "", "When this memory should be surfaced")
	cmd.Flags().StringToString("meta", nil, "Metadata key=value pairs")
	return cmd
}

// ReadCmd returns the read command
func ReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <uri>",
		Short: "Show a memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				_, err := a.MemoryAdapter(cmd.OutOrStdout()).Read(ctx, args[0])
				return err
			})
		},
	}
}

// UpdateCmd returns the update command
func UpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <uri>",
		Short: "Update a memory",
		Long: `Update the content or attributes of a memory.

Content changes are applied in this order: --old/--new substring
replacement when both are given, otherwise --append, otherwise --content.
A version is written only when the content actually changes.

Examples:
  ccmem update project://structure --content "monorepo with uv"
  ccmem update project://structure --append "uses go workspaces"
  ccmem update project://structure --old uv --new poetry
  ccmem update project://structure --priority 2 --meta owner=infra`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := primary.UpdateMemoryRequest{
				URI:        args[0],
				Content:    optionalString(cmd, "content"),
				Priority:   optionalInt(cmd, "priority"),
				Disclosure: optionalString(cmd, "disclosure"),
				Metadata:   metadataFlag(cmd),
				OldText:    optionalString(cmd, "old"),
				NewText:    optionalString(cmd, "new"),
			}
			if extra := optionalString(cmd, "append"); extra != nil {
				req.Content = extra
				req.Append = true
			}
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				_, err := a.MemoryAdapter(cmd.OutOrStdout()).Update(ctx, req)
				return err
			})
		},
	}
	cmd.Flags().String("content", "", "Replace the content")
	cmd.Flags().String("append", "", "Append a line to the content")
	cmd.Flags().String("old", "", "Substring to replace (with --new)")
	cmd.Flags().String("new", "", "Replacement for --old")
	cmd.Flags().Int("priority", memory.PriorityDefault, "New priority 0-10")
	cmd.Flags().String("disclosure", "", "New disclosure hint")
	cmd.Flags().StringToString("meta", nil, "Metadata key=value pairs to merge")
	cmd.MarkFlagsMutuallyExclusive("content", "append")
	cmd.MarkFlagsRequiredTogether("old", "new")
	return cmd
}

// DeleteCmd returns the delete command
func DeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <uri>",
		Short: "Delete a memory (soft by default)",
		Long: `Soft-delete a memory; restore brings it back.

With --force the memory is removed together with its versions, paths and
relations. This cannot be undone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				return a.MemoryAdapter(cmd.OutOrStdout()).Delete(ctx, args[0], force)
			})
		},
	}
	cmd.Flags().BoolP("force", "f", false, "Remove permanently")
	return cmd
}

func addFilterFlags(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().String("domain", "", "Only URIs in this scheme (e.g. project)")
	cmd.Flags().Int("limit", defaultLimit, "Maximum number of results")
	cmd.Flags().Int("priority-min", 0, "Minimum priority")
	cmd.Flags().Int("priority-max", 10, "Maximum priority")
	cmd.Flags().String("status", "", "Only this status (active, deprecated, archived, deleted)")
}

// SearchCmd returns the search command
func SearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memory content",
		Long: `Search memories whose content contains query (case-sensitive).
Results are ordered by priority, most important first, then most recently
updated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, _ := cmd.Flags().GetString("domain")
			limit, _ := cmd.Flags().GetInt("limit")
			status, _ := cmd.Flags().GetString("status")
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				_, err := a.MemoryAdapter(cmd.OutOrStdout()).Search(ctx, primary.SearchRequest{
					Query:       args[0],
					URIPrefix:   memory.DomainPrefix(domain),
					PriorityMin: optionalInt(cmd, "priority-min"),
					PriorityMax: optionalInt(cmd, "priority-max"),
					Status:      status,
					Limit:       limit,
				})
				return err
			})
		},
	}
	addFilterFlags(cmd, primary.DefaultSearchLimit)
	return cmd
}

// ListCmd returns the list command
func ListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List memories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			domain, _ := cmd.Flags().GetString("domain")
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			status, _ := cmd.Flags().GetString("status")
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				_, err := a.MemoryAdapter(cmd.OutOrStdout()).List(ctx, primary.ListRequest{
					URIPrefix:   memory.DomainPrefix(domain),
					PriorityMin: optionalInt(cmd, "priority-min"),
					PriorityMax: optionalInt(cmd, "priority-max"),
					Status:      status,
					Limit:       limit,
					Offset:      offset,
				})
				return err
			})
		},
	}
	addFilterFlags(cmd, primary.DefaultListLimit)
	cmd.Flags().Int("offset", 0, "Skip this many results")
	return cmd
}

// PriorityCmd returns the priority command
func PriorityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "priority <uri> <N>",
		Short: "Set the priority of a memory (0-10, lower is more important)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePriority(args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				return a.MemoryAdapter(cmd.OutOrStdout()).SetPriority(ctx, args[0], p)
			})
		},
	}
}

// DeprecateCmd returns the deprecate command
func DeprecateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deprecate <uri>",
		Short: "Mark an active memory deprecated",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reason, _ := cmd.Flags().GetString("reason")
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				return a.MemoryAdapter(cmd.OutOrStdout()).Deprecate(ctx, args[0], reason)
			})
		},
	}
	cmd.Flags().String("reason", "", "Why the memory is deprecated")
	return cmd
}

// ArchiveCmd returns the archive command
func ArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <uri>",
		Short: "Archive an active or deprecated memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				return a.MemoryAdapter(cmd.OutOrStdout()).Archive(ctx, args[0])
			})
		},
	}
}

// RestoreCmd returns the restore command
func RestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <uri>",
		Short: "Bring a deprecated, archived or deleted memory back to active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *wire.App) error {
				return a.MemoryAdapter(cmd.OutOrStdout()).Restore(ctx, args[0])
			})
		},
	}
}
