package telegram

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// TermAuth implements gotd's auth.UserAuthenticator by prompting the
// operator on the terminal. A pre-configured phone number skips the first
// prompt; the code and the two-factor password are always interactive.
type TermAuth struct {
	PhoneNumber string

	in  *bufio.Reader
	out io.Writer
}

func NewTermAuth(phone string, in io.Reader, out io.Writer) *TermAuth {
	return &TermAuth{
		PhoneNumber: phone,
		in:          bufio.NewReader(in),
		out:         out,
	}
}

func (a *TermAuth) prompt(ctx context.Context, label string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprintf(a.out, "%s: ", label)
	line, err := a.in.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read %s: %w", label, err)
	}
	return strings.TrimSpace(line), nil
}

func (a *TermAuth) Phone(ctx context.Context) (string, error) {
	if a.PhoneNumber != "" {
		return a.PhoneNumber, nil
	}
	return a.prompt(ctx, "Phone number")
}

func (a *TermAuth) Code(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	return a.prompt(ctx, "Verification code")
}

func (a *TermAuth) Password(ctx context.Context) (string, error) {
	return a.prompt(ctx, "Two-factor password")
}

func (a *TermAuth) AcceptTermsOfService(_ context.Context, tos tg.HelpTermsOfService) error {
	return &auth.SignUpRequired{TermsOfService: tos}
}

func (a *TermAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, errors.New("sign up not supported")
}
