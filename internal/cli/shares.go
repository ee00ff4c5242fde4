package cli

import (
	"context"
	"fmt"
	"time"
)

func (a *App) Share(ctx context.Context, args []string) error {
	if err := usage(args, 2, "share <index> <invitee> [sharePda]"); err != nil {
		return err
	}
	idx, err := parseIndex(args[0])
	if err != nil {
		return err
	}
	sharePDA := ""
	if len(args) > 2 {
		sharePDA = args[2]
	}

	s, err := a.svc.Shares.ShareDocument(ctx, a.principal, a.principal, idx, args[1], sharePDA)
	if err != nil {
		return report(err)
	}
	printlnFn(fmt.Sprintf("Shared with %s until %s (%s)", s.InviteeAddress, s.ValidUntil.Format(time.RFC3339), s.SharePDA))
	return nil
}

func (a *App) Shared(ctx context.Context, _ []string) error {
	docs, err := a.svc.Shares.ListShared(ctx, a.principal)
	if err != nil {
		return report(err)
	}
	if len(docs) == 0 {
		printlnFn("Nothing shared with you")
		return nil
	}
	for _, d := range docs {
		printlnFn(fmt.Sprintf("%s %4d  %-30s until %s", d.Document.OwnerAddress, d.Document.Index,
			d.Document.Metadata.Name, d.ValidUntil.Format(time.RFC3339)))
	}
	return nil
}

func (a *App) CanAccess(ctx context.Context, args []string) error {
	if err := usage(args, 2, "canaccess <owner> <index>"); err != nil {
		return err
	}
	idx, err := parseIndex(args[1])
	if err != nil {
		return err
	}
	ok, err := a.svc.Access.CanAccess(ctx, args[0], idx, a.principal)
	if err != nil {
		return report(err)
	}
	if ok {
		printlnFn("Access granted")
	} else {
		printlnFn("Access denied")
	}
	return nil
}
