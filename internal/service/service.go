package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/zitadel/zitadel-go/v3/pkg/client"
	"github.com/zitadel/zitadel-go/v3/pkg/client/zitadel/session/v2"
	v2 "github.com/zitadel/zitadel-go/v3/pkg/client/zitadel/user/v2"
	"github.com/zitadel/zitadel-go/v3/pkg/zitadel"
	"go.uber.org/zap"

	"signup-service/internal/config"
	"signup-service/internal/domain"
)

// ZitadelService - accounts, email verification and sessions on Zitadel.
type ZitadelService struct {
	users      v2.UserServiceClient
	sessionAPI session.SessionServiceClient
	orgID      string
	sessions   *SessionStore
	logger     *zap.Logger
}

// NewZitadelService creates the Zitadel API client. A personal access token
// wins over a key file when both are configured.
func NewZitadelService(ctx context.Context, cfg config.ZitadelConfig, sessions *SessionStore, logger *zap.Logger) (*ZitadelService, error) {
	if cfg.PAT == "" && cfg.KeyPath == "" {
		return nil, fmt.Errorf("either ZITADEL_PAT or ZITADEL_KEY_PATH must be set")
	}

	// Local instances run without TLS
	var zitadelInstance *zitadel.Zitadel
	if cfg.Domain == "homelab.localhost" || cfg.Domain == "localhost" {
		zitadelInstance = zitadel.New(cfg.Domain, zitadel.WithInsecure(cfg.InsecurePort))
		logger.Info("using insecure zitadel connection", zap.String("domain", cfg.Domain), zap.String("port", cfg.InsecurePort))
	} else {
		zitadelInstance = zitadel.New(cfg.Domain)
	}

	var authOption client.Option
	if cfg.PAT != "" {
		authOption = client.WithAuth(client.PAT(cfg.PAT))
		logger.Info("using personal access token authentication")
	} else {
		authOption = client.WithAuth(client.DefaultServiceUserAuthentication(
			cfg.KeyPath,
			client.ScopeZitadelAPI(),
		))
		logger.Info("using jwt key file authentication", zap.String("key_path", cfg.KeyPath))
	}

	zitadelClient, err := client.New(ctx, zitadelInstance, authOption)
	if err != nil {
		return nil, fmt.Errorf("failed to create zitadel client: %w", err)
	}

	logger.Info("zitadel client initialized", zap.String("domain", cfg.Domain))

	return &ZitadelService{
		users:      zitadelClient.UserServiceV2(),
		sessionAPI: zitadelClient.SessionServiceV2(),
		orgID:      cfg.OrgID,
		sessions:   sessions,
		logger:     logger,
	}, nil
}

// CreateAccount creates a human user whose username is the email address.
// The email verification code is held back until RequestEmailVerification.
func (s *ZitadelService) CreateAccount(ctx context.Context, email, password string) (domain.Account, error) {
	username := email
	placeholder := emailLocalPart(email)

	resp, err := s.users.CreateUser(ctx, &v2.CreateUserRequest{
		OrganizationId: s.orgID,
		Username:       &username,
		UserType: &v2.CreateUserRequest_Human_{
			Human: &v2.CreateUserRequest_Human{
				Profile: &v2.SetHumanProfile{
					GivenName:  placeholder,
					FamilyName: placeholder,
				},
				Email: &v2.SetHumanEmail{
					Email: email,
					Verification: &v2.SetHumanEmail_ReturnCode{
						ReturnCode: &v2.ReturnEmailVerificationCode{},
					},
				},
				PasswordType: &v2.CreateUserRequest_Human_Password{
					Password: &v2.Password{Password: password},
				},
			},
		},
	})
	if err != nil {
		return domain.Account{}, providerError("create account", err)
	}

	s.logger.Info("account created", zap.String("user_id", resp.GetId()))
	return domain.Account{ID: resp.GetId()}, nil
}

// RequestEmailVerification sends a one-time code to the account's email.
func (s *ZitadelService) RequestEmailVerification(ctx context.Context, accountID string, strategy domain.Strategy) error {
	if strategy != domain.StrategyEmailCode {
		return newProviderError("request email verification", "strategy_for_user_invalid",
			fmt.Sprintf("unsupported strategy %q", strategy),
			"This verification method is not supported.", domain.ErrUnknownStrategy)
	}

	_, err := s.users.ResendEmailCode(ctx, &v2.ResendEmailCodeRequest{
		UserId: accountID,
		Verification: &v2.ResendEmailCodeRequest_SendCode{
			SendCode: &v2.SendEmailVerificationCode{},
		},
	})
	if err != nil {
		return providerError("request email verification", err)
	}

	s.logger.Info("email verification code sent", zap.String("user_id", accountID))
	return nil
}

// AttemptEmailVerification checks the code. Once the account is active a
// session is created for it and reported with the attempt. A code is only
// sent to Zitadel while the email is unverified, so an attempt that failed
// after verification can be retried.
func (s *ZitadelService) AttemptEmailVerification(ctx context.Context, accountID, code string) (domain.VerificationAttempt, error) {
	user, err := s.users.GetUserByID(ctx, &v2.GetUserByIDRequest{UserId: accountID})
	if err != nil {
		return domain.VerificationAttempt{}, providerError("get user", err)
	}

	if user.GetUser().GetHuman().GetEmail().GetIsVerified() {
		s.logger.Info("email already verified, skipping code check", zap.String("user_id", accountID))
	} else {
		if _, err := s.users.VerifyEmail(ctx, &v2.VerifyEmailRequest{
			UserId:           accountID,
			VerificationCode: code,
		}); err != nil {
			return domain.VerificationAttempt{}, providerError("verify email", err)
		}

		user, err = s.users.GetUserByID(ctx, &v2.GetUserByIDRequest{UserId: accountID})
		if err != nil {
			return domain.VerificationAttempt{}, providerError("get user", err)
		}
	}

	if user.GetUser().GetState() != v2.UserState_USER_STATE_ACTIVE {
		s.logger.Info("account needs more steps",
			zap.String("user_id", accountID),
			zap.String("state", user.GetUser().GetState().String()))
		return domain.VerificationAttempt{Status: domain.StatusNeedsMore, AccountID: accountID}, nil
	}

	sessionID, err := s.CreateSession(ctx, accountID)
	if err != nil {
		return domain.VerificationAttempt{}, err
	}

	return domain.VerificationAttempt{
		Status:    domain.StatusComplete,
		AccountID: accountID,
		SessionID: sessionID,
	}, nil
}

// ActivateSession confirms the session still exists upstream and marks it
// as the client's active session.
func (s *ZitadelService) ActivateSession(ctx context.Context, sessionID string) error {
	if _, err := s.sessionAPI.GetSession(ctx, &session.GetSessionRequest{
		SessionId: sessionID,
	}); err != nil {
		return providerError("activate session", err)
	}

	if _, err := s.sessions.Activate(sessionID); err != nil {
		return newProviderError("activate session", "session_not_found", err.Error(),
			"Your session has expired, please try again.", err)
	}

	s.logger.Info("session activated", zap.String("session_id", sessionID))
	return nil
}

// CreateSession opens a session for a user and keeps its token for
// activation.
func (s *ZitadelService) CreateSession(ctx context.Context, userID string) (string, error) {
	resp, err := s.sessionAPI.CreateSession(ctx, &session.CreateSessionRequest{
		Checks: &session.Checks{
			User: &session.CheckUser{
				Search: &session.CheckUser_UserId{
					UserId: userID,
				},
			},
		},
	})
	if err != nil {
		return "", providerError("create session", err)
	}

	s.sessions.Issue(resp.GetSessionId(), resp.GetSessionToken(), userID)
	s.logger.Info("session created", zap.String("user_id", userID), zap.String("session_id", resp.GetSessionId()))
	return resp.GetSessionId(), nil
}

// FindOrCreateUser returns the user registered under the profile's email,
// creating one when none exists. created reports whether a new account was
// made.
func (s *ZitadelService) FindOrCreateUser(ctx context.Context, profile SSOProfile) (userID string, created bool, err error) {
	userID, err = s.findUserByUsername(ctx, profile.Email)
	if err != nil {
		return "", false, err
	}
	if userID != "" {
		return userID, false, nil
	}

	givenName := profile.GivenName
	if strings.TrimSpace(givenName) == "" {
		givenName = emailLocalPart(profile.Email)
	}
	familyName := profile.FamilyName
	if strings.TrimSpace(familyName) == "" {
		familyName = givenName
	}

	username := profile.Email
	resp, err := s.users.CreateUser(ctx, &v2.CreateUserRequest{
		OrganizationId: s.orgID,
		Username:       &username,
		UserType: &v2.CreateUserRequest_Human_{
			Human: &v2.CreateUserRequest_Human{
				Profile: &v2.SetHumanProfile{
					GivenName:  givenName,
					FamilyName: familyName,
				},
				Email: &v2.SetHumanEmail{
					Email: profile.Email,
					Verification: &v2.SetHumanEmail_IsVerified{
						IsVerified: profile.EmailVerified,
					},
				},
			},
		},
	})
	if err != nil {
		return "", false, providerError("create account", err)
	}

	s.logger.Info("account created from sso profile", zap.String("user_id", resp.GetId()))
	return resp.GetId(), true, nil
}

// findUserByUsername returns "" when no user matches.
func (s *ZitadelService) findUserByUsername(ctx context.Context, username string) (string, error) {
	resp, err := s.users.ListUsers(ctx, &v2.ListUsersRequest{
		Queries: []*v2.SearchQuery{
			{
				Query: &v2.SearchQuery_UserNameQuery{
					UserNameQuery: &v2.UserNameQuery{
						UserName: username,
					},
				},
			},
		},
	})
	if err != nil {
		return "", providerError("find user", err)
	}

	if len(resp.GetResult()) == 0 {
		return "", nil
	}
	return resp.GetResult()[0].GetUserId(), nil
}

func emailLocalPart(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
