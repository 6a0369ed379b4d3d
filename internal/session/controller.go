package session

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/skybi/verisuite/internal/clock"
	"github.com/skybi/verisuite/internal/store"
	"github.com/skybi/verisuite/internal/task"
)

// ErrExchangeInFlight is returned when an authentication exchange is started while another one is still running
var ErrExchangeInFlight = errors.New("session: an authentication exchange is already in flight")

// unauthorizedMessage is the only message ever surfaced for authentication failures.
// Provider and exchange error details are never passed on to the client.
var unauthorizedMessage = "Unauthorized access. Please contact support."

// Persisted session shadow keys
var (
	keyCredential      = "credential"
	keyLastActivity    = "last_activity"
	keyCurrentRoute    = "current_route"
	keyOnboardingShown = "onboarding_shown"
)

// Exchanger trades a raw identity-provider credential for an application bearer credential
type Exchanger interface {
	Exchange(ctx context.Context, providerCredential string) (string, error)
}

// Controller owns the authentication state, the session expiry timing and the route consistency of one client.
// All of its state is mirrored into a namespaced key-value store so that a process restart reconstructs it; the
// in-memory state stays authoritative.
type Controller struct {
	store     store.Store
	clock     clock.Clock
	exchanger Exchanger
	timeout   time.Duration

	mu         sync.Mutex
	busy       bool
	generation uint64

	credential     string
	lastActivity   time.Time
	route          string
	showOnboarding bool
	loginError     string

	watch *task.RepeatingTask
}

// NewController creates a new session controller.
// Use Restore to rebuild a previously persisted session before using it.
func NewController(kv store.Store, clk clock.Clock, exchanger Exchanger, timeout time.Duration) *Controller {
	return &Controller{
		store:     kv,
		clock:     clk,
		exchanger: exchanger,
		timeout:   timeout,
		route:     RouteRoot,
	}
}

// Restore rebuilds the session state out of the persisted shadow and performs the startup liveness check.
// A persisted route is restored before the navigation invariant is re-asserted, so the invariant may override it.
func (controller *Controller) Restore(ctx context.Context) error {
	controller.mu.Lock()
	defer controller.mu.Unlock()

	credential, ok, err := controller.store.Get(ctx, keyCredential)
	if err != nil {
		return err
	}
	if ok {
		controller.credential = credential

		rawActivity, ok, err := controller.store.Get(ctx, keyLastActivity)
		if err != nil {
			return err
		}
		if ok {
			millis, err := strconv.ParseInt(rawActivity, 10, 64)
			if err == nil {
				controller.lastActivity = time.UnixMilli(millis)
			}
		}

		onboarding, ok, err := controller.store.Get(ctx, keyOnboardingShown)
		if err != nil {
			return err
		}
		controller.showOnboarding = ok && onboarding == "true"
	}

	route, ok, err := controller.store.Get(ctx, keyCurrentRoute)
	if err != nil {
		return err
	}
	if ok {
		controller.route = route
	}

	return controller.checkLiveness(ctx)
}

// HandleProviderCallback consumes the opaque credential of the identity-provider callback and exchanges it for an
// application bearer credential. Any failure leaves the session state untouched and surfaces a fixed generic
// unauthorized message via LoginError.
// At most one exchange may be in flight at a time; a second invocation returns ErrExchangeInFlight.
func (controller *Controller) HandleProviderCallback(ctx context.Context, providerCredential string) error {
	controller.mu.Lock()
	if controller.busy {
		controller.mu.Unlock()
		return ErrExchangeInFlight
	}
	if providerCredential == "" {
		controller.loginError = unauthorizedMessage
		controller.mu.Unlock()
		return nil
	}
	controller.busy = true
	generation := controller.generation
	controller.mu.Unlock()

	credential, err := controller.exchanger.Exchange(ctx, providerCredential)

	controller.mu.Lock()
	defer controller.mu.Unlock()
	controller.busy = false

	// The controller may have been torn down while the exchange was running
	if controller.generation != generation {
		return nil
	}

	if err != nil {
		log.Debug().Err(err).Msg("the authentication exchange failed")
		controller.loginError = unauthorizedMessage
		return nil
	}

	controller.credential = credential
	controller.loginError = ""
	controller.showOnboarding = true
	controller.lastActivity = controller.clock.Now()
	if err := controller.persist(ctx, keyCredential, credential); err != nil {
		return err
	}
	if err := controller.persist(ctx, keyOnboardingShown, "true"); err != nil {
		return err
	}
	if err := controller.stampActivity(ctx); err != nil {
		return err
	}
	return controller.navigate(ctx, RouteLanding)
}

// Logout explicitly terminates the session, clears all persisted session fields and routes back to the root route
func (controller *Controller) Logout(ctx context.Context) error {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.logout(ctx)
}

// CheckLiveness performs a single liveness check.
// A missing persisted credential or an exceeded inactivity timeout forces the session into the logged-out state;
// otherwise the activity timestamp is refreshed. The navigation invariant is re-asserted either way.
func (controller *Controller) CheckLiveness(ctx context.Context) error {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.checkLiveness(ctx)
}

// Navigate persists the given route as the current one and re-asserts the navigation invariant, which may
// immediately override the given route
func (controller *Controller) Navigate(ctx context.Context, path string) error {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.navigate(ctx, path)
}

// DismissOnboarding clears the one-shot onboarding signal
func (controller *Controller) DismissOnboarding(ctx context.Context) error {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	controller.showOnboarding = false
	return controller.persist(ctx, keyOnboardingShown, "")
}

// IsLoggedIn returns whether the session currently holds a credential
func (controller *Controller) IsLoggedIn() bool {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.credential != ""
}

// Credential returns the current application bearer credential, if any
func (controller *Controller) Credential() (string, bool) {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.credential, controller.credential != ""
}

// CurrentRoute returns the route the client is currently positioned at
func (controller *Controller) CurrentRoute() string {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.route
}

// ShowOnboarding returns whether the one-shot onboarding signal is set
func (controller *Controller) ShowOnboarding() bool {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.showOnboarding
}

// LoginError returns the message of the last failed authentication attempt, if any
func (controller *Controller) LoginError() string {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	return controller.loginError
}

// StartExpiryWatch schedules the repeating task that re-checks the session liveness.
// It has to be started at most once; Close stops it again.
func (controller *Controller) StartExpiryWatch(interval time.Duration) {
	controller.mu.Lock()
	defer controller.mu.Unlock()
	if controller.watch != nil {
		return
	}
	controller.watch = task.NewRepeating(func() {
		if err := controller.CheckLiveness(context.Background()); err != nil {
			log.Error().Err(err).Msg("the session liveness check failed")
		}
	}, interval)
	controller.watch.Start()
}

// Close tears the controller down.
// It stops the expiry watch and invalidates the completion of a possibly in-flight authentication exchange.
func (controller *Controller) Close() {
	controller.mu.Lock()
	controller.generation++
	watch := controller.watch
	controller.watch = nil
	controller.mu.Unlock()

	if watch != nil {
		watch.Stop(false)
	}
}

func (controller *Controller) checkLiveness(ctx context.Context) error {
	if controller.credential == "" {
		return controller.assertRouteInvariant(ctx)
	}

	// The persisted credential may have been cleared externally (i.e. by a concurrent logout)
	_, ok, err := controller.store.Get(ctx, keyCredential)
	if err != nil {
		return err
	}
	if !ok {
		return controller.logout(ctx)
	}

	if !controller.lastActivity.IsZero() && controller.clock.Now().Sub(controller.lastActivity) > controller.timeout {
		log.Info().Msg("the session exceeded its inactivity timeout; terminating it")
		return controller.logout(ctx)
	}

	controller.lastActivity = controller.clock.Now()
	if err := controller.stampActivity(ctx); err != nil {
		return err
	}
	return controller.assertRouteInvariant(ctx)
}

func (controller *Controller) logout(ctx context.Context) error {
	controller.credential = ""
	controller.showOnboarding = false
	controller.loginError = ""
	if err := controller.persist(ctx, keyCredential, ""); err != nil {
		return err
	}
	if err := controller.persist(ctx, keyLastActivity, ""); err != nil {
		return err
	}
	if err := controller.persist(ctx, keyOnboardingShown, ""); err != nil {
		return err
	}
	return controller.navigate(ctx, RouteRoot)
}

func (controller *Controller) navigate(ctx context.Context, path string) error {
	controller.route = path
	if err := controller.persist(ctx, keyCurrentRoute, path); err != nil {
		return err
	}
	return controller.assertRouteInvariant(ctx)
}

func (controller *Controller) assertRouteInvariant(ctx context.Context) error {
	target, redirect := DecideRoute(controller.credential != "", controller.route)
	if !redirect {
		return nil
	}
	controller.route = target
	return controller.persist(ctx, keyCurrentRoute, target)
}

func (controller *Controller) stampActivity(ctx context.Context) error {
	return controller.persist(ctx, keyLastActivity, strconv.FormatInt(controller.lastActivity.UnixMilli(), 10))
}

// persist mirrors a single field into the shadow store.
// An empty value removes the key entirely so that a restart never resurrects stale values.
func (controller *Controller) persist(ctx context.Context, key, value string) error {
	if value == "" {
		return controller.store.Delete(ctx, key)
	}
	return controller.store.Set(ctx, key, value)
}
