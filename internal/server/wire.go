package server

import (
	"github.com/lk2023060901/startpage-backend/internal/admin"
	analyticsbiz "github.com/lk2023060901/startpage-backend/internal/analytics/biz"
	analyticsdata "github.com/lk2023060901/startpage-backend/internal/analytics/data"
	analyticsservice "github.com/lk2023060901/startpage-backend/internal/analytics/service"
	"github.com/lk2023060901/startpage-backend/internal/conf"
	"github.com/lk2023060901/startpage-backend/internal/data"
	"github.com/lk2023060901/startpage-backend/internal/movies"
	navbiz "github.com/lk2023060901/startpage-backend/internal/navigation/biz"
	navdata "github.com/lk2023060901/startpage-backend/internal/navigation/data"
	navservice "github.com/lk2023060901/startpage-backend/internal/navigation/service"
	"github.com/lk2023060901/startpage-backend/internal/pkg/logger"
	"github.com/lk2023060901/startpage-backend/internal/pkg/metrics"
	"github.com/lk2023060901/startpage-backend/internal/proxysession"
	settingsbiz "github.com/lk2023060901/startpage-backend/internal/settings/biz"
	settingsdata "github.com/lk2023060901/startpage-backend/internal/settings/data"
	settingsservice "github.com/lk2023060901/startpage-backend/internal/settings/service"
	"github.com/lk2023060901/startpage-backend/internal/turnstile"
)

// NewServices builds repositories, use cases and handlers on top of d.
func NewServices(config *conf.Config, log *logger.Logger, d *data.Data, m *metrics.Metrics) Services {
	// repositories
	settingsRepo := settingsdata.NewSettingsRepo(d.Redis)
	lastRepo := navdata.NewLastURLRepo(d.Redis)
	analyticsRepo := analyticsdata.NewAnalyticsRepo(d.Redis, analyticsdata.Options{
		SessionTTL: config.Analytics.SessionTTL,
		EventTTL:   config.Analytics.EventTTL,
	})
	sessionStore := proxysession.NewRedisStore(d.Redis)

	// use cases
	settingsUC := settingsbiz.NewSettingsUseCase(settingsRepo, config.Search.DefaultEngine, log)
	navigator := navbiz.NewNavigator(settingsUC, lastRepo, navbiz.ProxyConfig{
		Enabled: config.Proxy.Enabled,
		Prefix:  config.Proxy.Prefix,
		Bare:    config.Proxy.Bare,
		Codec:   config.Proxy.Codec,
	}, m, log)
	analyticsUC := analyticsbiz.NewAnalyticsUseCase(analyticsRepo, analyticsbiz.Options{
		Enabled:      config.Analytics.Enabled,
		RecentWindow: config.Analytics.RecentWindow,
	}, log)
	verifier := turnstile.NewVerifier(turnstile.Config{
		SecretKey:  config.Turnstile.SecretKey,
		VerifyURL:  config.Turnstile.VerifyURL,
		Timeout:    config.Turnstile.Timeout,
		MaxRetries: config.Turnstile.MaxRetries,
	}, analyticsUC, m, log)
	sessionsUC := proxysession.NewUseCase(sessionStore, log)
	tmdb := movies.NewClient(movies.Config{
		APIURL:        config.Movies.APIURL,
		APIKey:        config.Movies.APIKey,
		ImageBaseURL:  config.Movies.ImageBaseURL,
		FallbackImage: config.Movies.FallbackImage,
		Timeout:       config.Movies.Timeout,
		CacheTTL:      config.Movies.CacheTTL,
	}, m, log)
	moviesSvc := movies.NewService(tmdb, d.Redis, d.Pool, m, log)
	auth := admin.NewAuthenticator(admin.Config{
		PasswordHash: config.Admin.PasswordHash,
		JWTSecret:    config.Admin.JWTSecret,
		JWTIssuer:    config.Admin.JWTIssuer,
		TokenTTL:     config.Admin.TokenTTL,
	}, log)

	return Services{
		Settings:   settingsservice.NewSettingsService(settingsUC, log),
		Navigation: navservice.NewNavigationService(navigator, log),
		Analytics:  analyticsservice.NewAnalyticsService(analyticsUC, log),
		Turnstile:  turnstile.NewService(verifier),
		Sessions:   proxysession.NewService(sessionsUC),
		Movies:     movies.NewHandler(moviesSvc),
		Admin:      admin.NewService(auth),
		AdminAuth:  auth,
	}
}
