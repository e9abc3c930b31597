package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"go.pilab.hu/citizenportal/auth"
	"go.pilab.hu/citizenportal/device"
	"go.pilab.hu/citizenportal/domain"
	perrors "go.pilab.hu/citizenportal/errors"
	"go.pilab.hu/citizenportal/internal/display"
)

const maxOTPAttempts = 3

var (
	mobileFlag    string
	faceImageFlag string
	nameFlag      string
	emailFlag     string
	dlFlag        string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Log in to and out of the citizen portal",
}

// prompter reads answers from the command's input.
type prompter struct {
	out    io.Writer
	reader *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{out: cmd.OutOrStdout(), reader: bufio.NewReader(cmd.InOrStdin())}
}

func (p *prompter) ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// secret reads without echo when stdin is a terminal.
func (p *prompter) secret(question string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return p.ask(question)
	}

	fmt.Fprint(p.out, question)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func newFlow(cam device.Camera, opts ...auth.Option) *auth.Flow {
	opts = append([]auth.Option{
		auth.WithLogger(app.logger),
		auth.WithMetrics(app.metrics),
		auth.WithAudit(app.audit),
		auth.WithMaxFrameWidth(app.cfg.CameraMaxWidth),
	}, opts...)
	return auth.NewFlow(app.client, app.sessions, cam, opts...)
}

func faceCamera() device.Camera {
	if faceImageFlag == "" {
		return device.NewFileCamera()
	}
	return device.NewFileCamera(faceImageFlag)
}

// retryable reports whether the citizen can correct the input and try again.
func retryable(err error) bool {
	var verr *perrors.ValidationError
	var aerr *perrors.ApplicationError
	return errors.As(err, &verr) || errors.As(err, &aerr)
}

func printLoggedIn(cmd *cobra.Command, s auth.State) error {
	fields := map[string]string{
		"user_id":  s.UserID.String(),
		"redirect": s.Redirect,
	}
	if !s.Notice.Empty() {
		fields["notice"] = s.Notice.Message
	}
	return printResult(cmd, s.Success, fields)
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with a one-time password sent to your mobile",
	Long: `Log in with a one-time password. New citizens are registered after the
OTP is verified; pass --face-image to enroll a face for face login.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p := newPrompter(cmd)

		flow := newFlow(faceCamera())
		defer flow.Close()

		mobile := mobileFlag
		if mobile == "" {
			var err error
			if mobile, err = p.ask("Mobile number: "); err != nil {
				return err
			}
		}
		if err := flow.RequestOTP(ctx, mobile); err != nil {
			return err
		}

		s := flow.State()
		fmt.Fprintln(p.out, s.Success)
		if s.DevOTP != "" {
			fmt.Fprintf(p.out, "Development OTP: %s\n", s.DevOTP)
		}

		for attempt := 1; ; attempt++ {
			code, err := p.secret("OTP: ")
			if err != nil {
				return err
			}
			err = flow.VerifyOTP(ctx, code)
			if err == nil {
				break
			}
			if !retryable(err) || attempt == maxOTPAttempts {
				return err
			}
			fmt.Fprintf(p.out, "%s\n", perrors.Message(err))
		}

		if flow.State().Phase == auth.PhaseRegistering {
			if err := register(cmd, p, flow); err != nil {
				return err
			}
		}
		return printLoggedIn(cmd, flow.State())
	},
}

func register(cmd *cobra.Command, p *prompter, flow *auth.Flow) error {
	ctx := cmd.Context()
	fmt.Fprintln(p.out, flow.State().Success)

	form := domain.RegistrationForm{Name: nameFlag, Email: emailFlag, DLNumber: dlFlag}
	var err error
	if form.Name == "" {
		if form.Name, err = p.ask("Full name: "); err != nil {
			return err
		}
		if form.Email, err = p.ask("Email (optional): "); err != nil {
			return err
		}
		if form.DLNumber, err = p.ask("Driving licence number (optional): "); err != nil {
			return err
		}
	}
	if err := flow.Register(ctx, form); err != nil {
		return err
	}

	if faceImageFlag == "" {
		return flow.DeclineEnrollment()
	}

	if err := flow.AcceptEnrollment(ctx); err != nil {
		if flow.State().Phase == auth.PhaseAuthenticated {
			// Registered without face enrollment.
			return nil
		}
		return err
	}
	if err := flow.CaptureFace(ctx); err != nil {
		fmt.Fprintf(p.out, "Face enrollment failed: %s\n", perrors.Message(err))
		return flow.CancelCapture()
	}
	return nil
}

var authFaceLoginCmd = &cobra.Command{
	Use:   "face-login",
	Short: "Log in with a face image",
	RunE: func(cmd *cobra.Command, args []string) error {
		if faceImageFlag == "" {
			return errors.New("--face-image is required")
		}
		ctx := cmd.Context()

		flow := newFlow(faceCamera(), auth.WithMode(auth.ModeFace))
		defer flow.Close()

		if err := flow.StartFaceLogin(ctx); err != nil {
			return err
		}
		if err := flow.CaptureFace(ctx); err != nil {
			return err
		}
		return printLoggedIn(cmd, flow.State())
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := auth.Logout(cmd.Context(), app.sessions, app.audit); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in citizen",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := app.sessions.Current(cmd.Context())
		if err != nil {
			return err
		}
		p := sess.Profile
		return printResult(cmd, "Logged in as "+p.Name, map[string]string{
			"user_id":       sess.UserID.String(),
			"mobile_number": p.MobileNumber,
			"email":         p.Email,
			"balance":       display.FormatAmount(p.AccountBalance),
			"face_login":    strconv.FormatBool(p.HasFaceData),
		})
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd, authFaceLoginCmd, authLogoutCmd, authWhoamiCmd)

	authLoginCmd.Flags().StringVar(&mobileFlag, "mobile", "", "10-digit mobile number")
	authLoginCmd.Flags().StringVar(&nameFlag, "name", "", "full name, used when registering")
	authLoginCmd.Flags().StringVar(&emailFlag, "email", "", "email address, used when registering")
	authLoginCmd.Flags().StringVar(&dlFlag, "dl-number", "", "driving licence number, used when registering")
	authLoginCmd.Flags().StringVar(&faceImageFlag, "face-image", "", "image file to enroll for face login after registering")
	authFaceLoginCmd.Flags().StringVar(&faceImageFlag, "face-image", "", "image file to log in with")
}
