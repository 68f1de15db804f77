package issuance

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/go-acme/lego/v4/certcrypto"
	"github.com/go-acme/lego/v4/certificate"
	"github.com/go-acme/lego/v4/challenge"
	"github.com/go-acme/lego/v4/lego"
	"github.com/go-acme/lego/v4/registration"
)

// Issuer obtains a certificate for a single customer domain.
type Issuer interface {
	Issue(ctx context.Context, domainName string) (*Result, error)
}

// Result carries the issued certificate artifacts. NotAfter comes from
// the leaf certificate and drives the renewal schedule.
type Result struct {
	CertificatePEM []byte
	PrivateKeyPEM  []byte
	IssuerPEM      []byte
	NotAfter       time.Time
}

// Config holds ACME account settings.
type Config struct {
	DirectoryURL string `env:"ACME_DIRECTORY_URL" envDefault:"https://acme-v02.api.letsencrypt.org/directory"`
	AccountEmail string `env:"ACME_ACCOUNT_EMAIL,required"`
}

// Option configures the ACME issuer.
type Option func(*ACMEIssuer)

// WithDirectoryURL overrides the ACME directory URL (defaults to Let's
// Encrypt production).
func WithDirectoryURL(url string) Option {
	return func(i *ACMEIssuer) { i.directoryURL = strings.TrimSpace(url) }
}

// WithKeyType overrides the key type used for issued certificate keys.
func WithKeyType(keyType certcrypto.KeyType) Option {
	return func(i *ACMEIssuer) { i.keyType = keyType }
}

// ACMEIssuer issues certificates through an ACME CA using the DNS-01
// challenge answered from the platform's delegated zone.
type ACMEIssuer struct {
	email        string
	directoryURL string
	keyType      certcrypto.KeyType
	zone         ChallengeZoneStore

	clientFactory   clientFactory
	accountKeyMaker func() (crypto.PrivateKey, error)
}

// NewACMEIssuer constructs an issuer for the given ACME account email
// and challenge zone store.
func NewACMEIssuer(email string, zone ChallengeZoneStore, opts ...Option) (*ACMEIssuer, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: account email is required", ErrInvalidConfig)
	}
	if zone == nil {
		return nil, ErrChallengeStoreNil
	}

	issuer := &ACMEIssuer{
		email:         email,
		directoryURL:  lego.LEDirectoryProduction,
		keyType:       certcrypto.EC256,
		zone:          zone,
		clientFactory: defaultClientFactory,
		accountKeyMaker: func() (crypto.PrivateKey, error) {
			return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(issuer)
		}
	}
	if issuer.directoryURL == "" {
		issuer.directoryURL = lego.LEDirectoryProduction
	}
	return issuer, nil
}

// Issue registers an ACME account, answers the DNS-01 challenge from
// the delegated zone, and obtains a bundled certificate for the domain.
func (i *ACMEIssuer) Issue(ctx context.Context, domainName string) (*Result, error) {
	domainName = strings.TrimSpace(strings.ToLower(domainName))
	if domainName == "" {
		return nil, ErrEmptyDomain
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	accountKey, err := i.accountKeyMaker()
	if err != nil {
		return nil, fmt.Errorf("generate account key: %w", err)
	}

	user := &accountUser{email: i.email, key: accountKey}

	legoCfg := lego.NewConfig(user)
	legoCfg.CADirURL = i.directoryURL
	legoCfg.Certificate.KeyType = i.keyType

	client, err := i.clientFactory(legoCfg)
	if err != nil {
		return nil, fmt.Errorf("create acme client: %w", err)
	}

	if err := client.SetDNS01Provider(newZoneProvider(i.zone)); err != nil {
		return nil, fmt.Errorf("configure dns-01 provider: %w", err)
	}

	reg, err := client.Register(registration.RegisterOptions{TermsOfServiceAgreed: true})
	if err != nil {
		return nil, fmt.Errorf("register account: %w", err)
	}
	user.registration = reg

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	certRes, err := client.Obtain(certificate.ObtainRequest{
		Domains: []string{domainName},
		Bundle:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIssuanceFailed, err)
	}

	return resultFromResource(certRes)
}

func resultFromResource(certRes *certificate.Resource) (*Result, error) {
	if certRes == nil || len(certRes.Certificate) == 0 {
		return nil, ErrEmptyCertificate
	}
	if len(certRes.PrivateKey) == 0 {
		return nil, ErrEmptyPrivateKey
	}

	certs, err := certcrypto.ParsePEMBundle(certRes.Certificate)
	if err != nil {
		return nil, fmt.Errorf("parse certificate bundle: %w", err)
	}
	if len(certs) == 0 {
		return nil, ErrEmptyCertificate
	}

	return &Result{
		CertificatePEM: certRes.Certificate,
		PrivateKeyPEM:  certRes.PrivateKey,
		IssuerPEM:      certRes.IssuerCertificate,
		NotAfter:       certs[0].NotAfter,
	}, nil
}

type clientFactory func(*lego.Config) (acmeClient, error)

type acmeClient interface {
	Register(options registration.RegisterOptions) (*registration.Resource, error)
	SetDNS01Provider(provider challenge.Provider) error
	Obtain(request certificate.ObtainRequest) (*certificate.Resource, error)
}

func defaultClientFactory(cfg *lego.Config) (acmeClient, error) {
	client, err := lego.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &legoClientAdapter{client: client}, nil
}

type legoClientAdapter struct {
	client *lego.Client
}

func (l *legoClientAdapter) Register(options registration.RegisterOptions) (*registration.Resource, error) {
	return l.client.Registration.Register(options)
}

func (l *legoClientAdapter) SetDNS01Provider(provider challenge.Provider) error {
	return l.client.Challenge.SetDNS01Provider(provider)
}

func (l *legoClientAdapter) Obtain(request certificate.ObtainRequest) (*certificate.Resource, error) {
	return l.client.Certificate.Obtain(request)
}

type accountUser struct {
	email        string
	registration *registration.Resource
	key          crypto.PrivateKey
}

func (u *accountUser) GetEmail() string                        { return u.email }
func (u *accountUser) GetRegistration() *registration.Resource { return u.registration }
func (u *accountUser) GetPrivateKey() crypto.PrivateKey        { return u.key }
