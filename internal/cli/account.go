package cli

import (
	"context"
	"fmt"
	"strconv"
)

func (a *App) Register(ctx context.Context, args []string) error {
	if err := usage(args, 1, "register <wallet>"); err != nil {
		return err
	}
	p, err := a.svc.Profiles.Register(ctx, args[0])
	if err != nil {
		return report(err)
	}
	printlnFn("Registered", p.WalletAddress, "profile", p.ProfilePDA)
	return nil
}

// Login asks the wallet owner to sign a fresh challenge and, once the
// signature checks out, acts as that wallet.
func (a *App) Login(ctx context.Context, args []string) error {
	if err := usage(args, 1, "login <wallet>"); err != nil {
		return err
	}
	wallet := args[0]

	challenge, err := a.svc.Profiles.IssueLoginChallenge(ctx, wallet)
	if err != nil {
		return report(err)
	}

	sig, err := GetSimpleText(a.reader, fmt.Sprintf("Sign this message with %s and paste the hex signature:\n%s", wallet, challenge), a.out)
	if err != nil {
		return report(err)
	}

	if err := a.svc.Profiles.VerifyLogin(ctx, wallet, sig); err != nil {
		return report(err)
	}

	a.principal = wallet
	printlnFn("Login successful")
	return nil
}

// Profile shows the given wallet, or the logged-in one, with its ledger
// record.
func (a *App) Profile(ctx context.Context, args []string) error {
	wallet := a.principal
	if len(args) > 0 {
		wallet = args[0]
	}
	if wallet == "" {
		printlnFn("Usage: profile <wallet>")
		return errUsage
	}

	st, err := a.svc.Profiles.Status(ctx, wallet)
	if err != nil {
		return report(err)
	}
	printlnFn(fmt.Sprintf("%s profile %s documents %d", st.Profile.WalletAddress, st.Profile.ProfilePDA, st.DocumentCount))
	if st.OnLedger {
		printlnFn(fmt.Sprintf("ledger documents %d", st.LedgerDocumentCount))
	} else {
		printlnFn("Profile not created on ledger yet")
	}
	return nil
}

func (a *App) Balance(ctx context.Context, args []string) error {
	if err := usage(args, 1, "balance <address>"); err != nil {
		return err
	}
	bal, err := a.svc.Funding.Balance(ctx, args[0])
	if err != nil {
		return report(err)
	}
	printlnFn(fmt.Sprintf("%s: %d lamports", args[0], bal))
	return nil
}

func (a *App) Fund(ctx context.Context, args []string) error {
	if err := usage(args, 2, "fund <address> <lamports>"); err != nil {
		return err
	}
	lamports, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		printlnFn("Invalid amount:", args[1])
		return err
	}
	sig, err := a.svc.Funding.SendPayment(ctx, args[0], lamports)
	if err != nil {
		return report(err)
	}
	printlnFn("Payment sent:", sig)
	return nil
}
