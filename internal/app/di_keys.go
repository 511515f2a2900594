package app

import (
	"context"

	"github.com/phivault/phivault/internal/environment"
	keysDomain "github.com/phivault/phivault/internal/keys/domain"
	keysRepository "github.com/phivault/phivault/internal/keys/repository"
	keysService "github.com/phivault/phivault/internal/keys/service"
	keysUseCase "github.com/phivault/phivault/internal/keys/usecase"
)

// EnvironmentPolicy returns the security policy derived from the configured
// environment. An unrecognized environment is a startup failure.
func (c *Container) EnvironmentPolicy() (environment.Policy, error) {
	c.policyInit.Do(func() {
		env, err := environment.Parse(c.config.Environment)
		if err != nil {
			c.initErrors["environmentPolicy"] = err
			return
		}
		c.policy = environment.NewPolicy(env)
	})
	if storedErr, exists := c.initErrors["environmentPolicy"]; exists {
		return environment.Policy{}, storedErr
	}
	return c.policy, nil
}

// KMSService returns the KMS keeper opener.
func (c *Container) KMSService() keysService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = keysService.NewKMSService()
	})
	return c.kmsService
}

// MasterKey loads and returns the master key, honoring the environment policy.
func (c *Container) MasterKey(ctx context.Context) (*keysDomain.MasterKey, error) {
	c.masterKeyInit.Do(func() {
		policy, err := c.EnvironmentPolicy()
		if err != nil {
			c.initErrors["masterKey"] = err
			return
		}
		masterKey, err := keysDomain.LoadMasterKey(
			ctx,
			keysDomain.MasterKeyInput{
				EncodedKey: c.config.MasterKey,
				KMSKeyURI:  c.config.MasterKeyKMSURI,
				DevKeyFile: c.config.DevMasterKeyFile,
			},
			policy,
			c.KMSService(),
			c.Logger(),
		)
		if err != nil {
			c.initErrors["masterKey"] = err
			return
		}
		c.masterKey = masterKey
	})
	if storedErr, exists := c.initErrors["masterKey"]; exists {
		return nil, storedErr
	}
	return c.masterKey, nil
}

// AEADManager returns the AEAD cipher factory.
func (c *Container) AEADManager() keysService.AEADManager {
	c.aeadManagerInit.Do(func() {
		c.aeadManager = keysService.NewAEADManager()
	})
	return c.aeadManager
}

// KeyWrapper returns the key wrapping service bound to the master key.
func (c *Container) KeyWrapper(ctx context.Context) (keysService.KeyWrapper, error) {
	c.keyWrapperInit.Do(func() {
		masterKey, err := c.MasterKey(ctx)
		if err != nil {
			c.initErrors["keyWrapper"] = err
			return
		}
		wrapper, err := keysService.NewKeyWrapper(
			masterKey,
			c.AEADManager(),
			keysDomain.Algorithm(c.config.WrapAlgorithm),
		)
		if err != nil {
			c.initErrors["keyWrapper"] = err
			return
		}
		c.keyWrapper = wrapper
	})
	if storedErr, exists := c.initErrors["keyWrapper"]; exists {
		return nil, storedErr
	}
	return c.keyWrapper, nil
}

// UsageSigner returns the usage record signer derived from the master key.
func (c *Container) UsageSigner(ctx context.Context) (keysService.UsageSigner, error) {
	c.usageSignerInit.Do(func() {
		masterKey, err := c.MasterKey(ctx)
		if err != nil {
			c.initErrors["usageSigner"] = err
			return
		}
		c.usageSigner = keysService.NewUsageSigner(masterKey)
	})
	if storedErr, exists := c.initErrors["usageSigner"]; exists {
		return nil, storedErr
	}
	return c.usageSigner, nil
}

// KeyRepository returns the encryption key repository for the configured driver.
func (c *Container) KeyRepository() (keysUseCase.KeyRepository, error) {
	c.keyRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["keyRepository"] = err
			return
		}
		switch c.config.DBDriver {
		case "mysql":
			c.keyRepo = keysRepository.NewMySQLKeyRepository(db)
		default:
			c.keyRepo = keysRepository.NewPostgreSQLKeyRepository(db)
		}
	})
	if storedErr, exists := c.initErrors["keyRepository"]; exists {
		return nil, storedErr
	}
	return c.keyRepo, nil
}

// UsageLogRepository returns the key usage log repository for the configured driver.
func (c *Container) UsageLogRepository() (keysUseCase.UsageLogRepository, error) {
	c.usageRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["usageLogRepository"] = err
			return
		}
		switch c.config.DBDriver {
		case "mysql":
			c.usageRepo = keysRepository.NewMySQLUsageLogRepository(db)
		default:
			c.usageRepo = keysRepository.NewPostgreSQLUsageLogRepository(db)
		}
	})
	if storedErr, exists := c.initErrors["usageLogRepository"]; exists {
		return nil, storedErr
	}
	return c.usageRepo, nil
}

// Auditor returns the usage auditor.
func (c *Container) Auditor(ctx context.Context) (keysUseCase.Auditor, error) {
	c.auditorInit.Do(func() {
		usageRepo, err := c.UsageLogRepository()
		if err != nil {
			c.initErrors["auditor"] = err
			return
		}
		signer, err := c.UsageSigner(ctx)
		if err != nil {
			c.initErrors["auditor"] = err
			return
		}
		c.auditor = keysUseCase.NewAuditor(usageRepo, signer, c.Logger())
	})
	if storedErr, exists := c.initErrors["auditor"]; exists {
		return nil, storedErr
	}
	return c.auditor, nil
}

// KeyManager returns the key lifecycle manager.
func (c *Container) KeyManager(ctx context.Context) (keysUseCase.KeyManager, error) {
	c.keyManagerInit.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["keyManager"] = err
			return
		}
		keyRepo, err := c.KeyRepository()
		if err != nil {
			c.initErrors["keyManager"] = err
			return
		}
		wrapper, err := c.KeyWrapper(ctx)
		if err != nil {
			c.initErrors["keyManager"] = err
			return
		}
		auditor, err := c.Auditor(ctx)
		if err != nil {
			c.initErrors["keyManager"] = err
			return
		}
		manager := keysUseCase.NewKeyManager(
			txManager,
			keyRepo,
			keysService.NewKeyGenerator(),
			wrapper,
			auditor,
			c.config.KeyLifetime(),
		)
		if c.config.MetricsEnabled {
			businessMetrics, err := c.BusinessMetrics()
			if err != nil {
				c.initErrors["keyManager"] = err
				return
			}
			manager = keysUseCase.NewKeyManagerWithMetrics(manager, businessMetrics)
		}
		c.keyManager = manager
	})
	if storedErr, exists := c.initErrors["keyManager"]; exists {
		return nil, storedErr
	}
	return c.keyManager, nil
}

// EncryptionService returns the data encryption service.
func (c *Container) EncryptionService(ctx context.Context) (keysUseCase.EncryptionService, error) {
	c.encryptionServiceInit.Do(func() {
		keyManager, err := c.KeyManager(ctx)
		if err != nil {
			c.initErrors["encryptionService"] = err
			return
		}
		keyRepo, err := c.KeyRepository()
		if err != nil {
			c.initErrors["encryptionService"] = err
			return
		}
		usageRepo, err := c.UsageLogRepository()
		if err != nil {
			c.initErrors["encryptionService"] = err
			return
		}
		auditor, err := c.Auditor(ctx)
		if err != nil {
			c.initErrors["encryptionService"] = err
			return
		}
		service := keysUseCase.NewEncryptionService(
			keyManager,
			c.AEADManager(),
			keyRepo,
			usageRepo,
			auditor,
		)
		if c.config.MetricsEnabled {
			businessMetrics, err := c.BusinessMetrics()
			if err != nil {
				c.initErrors["encryptionService"] = err
				return
			}
			service = keysUseCase.NewEncryptionServiceWithMetrics(service, businessMetrics)
		}
		c.encryptionService = service
	})
	if storedErr, exists := c.initErrors["encryptionService"]; exists {
		return nil, storedErr
	}
	return c.encryptionService, nil
}
