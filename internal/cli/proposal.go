package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewProposalCmd создаёт группу команд для управления proposals.
func NewProposalCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proposal",
		Short: "Manage change proposals",
	}

	cmd.AddCommand(
		newProposalListCmd(clientFn, outputFn),
		newProposalCreateCmd(clientFn, outputFn),
		newProposalShowCmd(clientFn, outputFn),
		newProposalUpdateCmd(clientFn, outputFn),
		newProposalDeleteCmd(clientFn, outputFn),
		newProposalSubmitCmd(clientFn, outputFn),
		newProposalApproveCmd(clientFn, outputFn),
		newProposalRejectCmd(clientFn, outputFn),
		newProposalDryRunCmd(clientFn, outputFn),
		newProposalApplyCmd(clientFn, outputFn),
	)

	return cmd
}

func proposalRow(p *ProposalResponse) []string {
	applied := ""
	if p.AppliedVersion != nil {
		applied = fmt.Sprintf("v%d", *p.AppliedVersion)
	}
	return []string{p.ID, p.ProjectID, p.Status, p.Title, applied, p.CreatedAt}
}

var proposalHeaders = []string{"ID", "PROJECT_ID", "STATUS", "TITLE", "APPLIED", "CREATED"}

func newProposalListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var projectID string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			proposals, err := client.ListProposals(ListProposalsOpts{
				ProjectID: projectID,
				Status:    status,
				Limit:     limit,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, len(proposals))
			for i := range proposals {
				rows[i] = proposalRow(&proposals[i])
			}

			out.Print(proposalHeaders, rows, proposals)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project-id", "", "Filter by project ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (DRAFT, PENDING_REVIEW, APPROVED, REJECTED, APPLIED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newProposalCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var specFile string
	var title string
	var description string
	var author string

	cmd := &cobra.Command{
		Use:   "create PROJECT_ID",
		Short: "Create a proposal from a spec file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			spec, err := loadSpecFile(specFile)
			if err != nil {
				return err
			}

			proposal, err := client.CreateProposal(args[0], CreateProposalRequest{
				Title:        title,
				Description:  description,
				ProposedSpec: spec,
				CreatedBy:    author,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Proposal created: %s", proposal.ID))
			out.Print(proposalHeaders, [][]string{proposalRow(proposal)}, proposal)
			return nil
		},
	}

	cmd.Flags().StringVarP(&specFile, "file", "f", "", "Path to proposed spec file (required)")
	cmd.Flags().StringVar(&title, "title", "", "Proposal title")
	cmd.Flags().StringVar(&description, "description", "", "Proposal description")
	cmd.Flags().StringVar(&author, "author", "", "Proposal author")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newProposalShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show proposal details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			proposal, err := client.GetProposal(args[0])
			if err != nil {
				return err
			}

			out.Print(proposalHeaders, [][]string{proposalRow(proposal)}, proposal)
			return nil
		},
	}
}

func newProposalUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var specFile string
	var title string
	var description string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a draft proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateProposalRequest{}
			if cmd.Flags().Changed("title") {
				req.Title = &title
			}
			if cmd.Flags().Changed("description") {
				req.Description = &description
			}
			if specFile != "" {
				spec, err := loadSpecFile(specFile)
				if err != nil {
					return err
				}
				req.ProposedSpec = spec
			}

			proposal, err := client.UpdateProposal(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Proposal updated")
			out.Print(proposalHeaders, [][]string{proposalRow(proposal)}, proposal)
			return nil
		},
	}

	cmd.Flags().StringVarP(&specFile, "file", "f", "", "Path to new proposed spec file")
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")

	return cmd
}

func newProposalDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteProposal(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Proposal deleted: %s", args[0]))
			return nil
		},
	}
}

func newProposalSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "submit ID",
		Short: "Submit a proposal for review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			proposal, err := client.SubmitProposal(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Proposal submitted for review: %s", proposal.ID))
			return nil
		},
	}
}

func newProposalApproveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var reviewer string
	var comment string

	cmd := &cobra.Command{
		Use:   "approve ID",
		Short: "Approve a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			proposal, err := client.ApproveProposal(args[0], ReviewProposalRequest{
				Reviewer: reviewer,
				Comment:  comment,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Proposal approved: %s", proposal.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&reviewer, "reviewer", "", "Reviewer name (required)")
	cmd.Flags().StringVar(&comment, "comment", "", "Review comment")
	cmd.MarkFlagRequired("reviewer")

	return cmd
}

func newProposalRejectCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var reviewer string
	var comment string

	cmd := &cobra.Command{
		Use:   "reject ID",
		Short: "Reject a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			proposal, err := client.RejectProposal(args[0], ReviewProposalRequest{
				Reviewer: reviewer,
				Comment:  comment,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Proposal rejected: %s", proposal.ID))
			return nil
		},
	}

	cmd.Flags().StringVar(&reviewer, "reviewer", "", "Reviewer name (required)")
	cmd.Flags().StringVar(&comment, "comment", "", "Review comment")
	cmd.MarkFlagRequired("reviewer")

	return cmd
}

func newProposalDryRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var inputs []string

	cmd := &cobra.Command{
		Use:   "dry-run ID",
		Short: "Validate and walk the proposed spec without executing items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			parsed, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			proposal, err := client.DryRunProposal(args[0], DryRunProposalRequest{Inputs: parsed})
			if err != nil {
				return err
			}

			if proposal.DryRunResult != nil {
				if status, ok := proposal.DryRunResult["status"].(string); ok {
					out.Success(fmt.Sprintf("Dry run finished: %s", status))
				}
				out.JSON(proposal.DryRunResult)
				return nil
			}

			out.Success("Dry run finished")
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")

	return cmd
}

func newProposalApplyCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "apply ID",
		Short: "Apply an approved proposal as a new project version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			proposal, err := client.ApplyProposal(args[0])
			if err != nil {
				return err
			}

			if proposal.AppliedVersion != nil {
				out.Success(fmt.Sprintf("Proposal applied as version %d", *proposal.AppliedVersion))
			} else {
				out.Success(fmt.Sprintf("Proposal applied: %s", proposal.ID))
			}
			return nil
		},
	}
}
