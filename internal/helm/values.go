// Package helm turns an environment configuration into the values document
// consumed by the Odoo chart. Everything here is pure.
package helm

import "github.com/wenwu/saas-platform/odoo-admin-service/internal/models"

const (
	ImageRepository    = "docker.public.mmiao.net/meowcloud/odoo-runtime-base"
	imageTagSuffix     = "-py3.12"
	imagePullPolicy    = "IfNotPresent"
	storageProvisioner = "driver.longhorn.io"
	reclaimPolicy      = "Retain"
	odooPort           = 8069
	serviceType        = "ClusterIP"
	filestoreMountPath = "/opt/odoo/filestore"
	ingressPathType    = "Prefix"
)

// Synthesize builds the values document for env. customerID is the
// business identifier of the owning customer, not its primary key.
func Synthesize(env *models.Environment, customerID string) *models.HelmValues {
	addons := make([]models.GitAddon, len(env.GitCustomerAddons))
	copy(addons, env.GitCustomerAddons)

	extra := map[string]string{}
	if env.ListDB {
		extra["list_db"] = "True"
	}
	if env.DBFilter != "" {
		extra["dbfilter"] = env.DBFilter
	}

	v := &models.HelmValues{
		ReleaseNameOverride: env.ReleaseName,
		Customer:            models.HelmCustomer{ID: customerID},
		Image: models.HelmImage{
			Repository: ImageRepository,
			Tag:        env.OdooVersion + imageTagSuffix,
			PullPolicy: imagePullPolicy,
		},
		Git: models.HelmGit{
			SSH: models.HelmGitSSH{SecretName: env.GitSSHSecret},
			OdooCore: models.HelmGitRepo{
				Repository: env.GitOdooRepository,
				Ref:        env.GitOdooRef,
			},
			CustomerAddons: addons,
		},
		Storage: models.HelmStorage{
			StorageClass: models.HelmStorageClass{
				Create:               true,
				Name:                 env.StorageClass,
				Provisioner:          storageProvisioner,
				ReclaimPolicy:        reclaimPolicy,
				AllowVolumeExpansion: true,
			},
			Expansion: models.HelmExpansion{
				Enabled: env.StorageAutoExpand,
				Auto: models.HelmAutoExpansion{
					Enabled:         env.StorageAutoExpand,
					ExpandThreshold: env.StorageExpandThreshold,
					ExpandSize:      env.StorageExpandSize,
					MaxSize:         env.StorageMaxSize,
				},
			},
		},
		Odoo: models.HelmOdoo{
			Service: models.HelmService{Port: odooPort, Type: serviceType},
			Config: models.HelmOdooConfig{
				AdminPasswd:     env.AdminPassword,
				Workers:         env.Workers,
				LimitRequest:    env.LimitRequest,
				LimitMemoryHard: env.LimitMemoryHard,
				LimitMemorySoft: env.LimitMemorySoft,
				LogLevel:        env.LogLevel,
				ProxyMode:       env.ProxyMode || env.IngressEnabled,
				ExtraParams:     extra,
			},
			Persistence: models.HelmOdooPersistence{
				Filestore: models.HelmFilestore{
					Enabled:      true,
					MountPath:    filestoreMountPath,
					Size:         env.StorageSize,
					StorageClass: env.StorageClass,
				},
			},
		},
		PostgreSQL: models.HelmPostgreSQL{
			Enabled:           env.DBEnabled,
			Version:           env.DBVersion,
			NumberOfInstances: env.DBInstances,
			Persistence: models.HelmPersistence{
				Size:         env.DBStorageSize,
				StorageClass: env.StorageClass,
			},
			Resources: models.HelmResources{
				Requests: models.HelmResourceList{CPU: env.DBCPURequest, Memory: env.DBMemoryRequest},
				Limits:   models.HelmResourceList{CPU: env.DBCPULimit, Memory: env.DBMemoryLimit},
			},
		},
		Ingress: models.HelmIngress{
			Enabled:   env.IngressEnabled,
			ClassName: env.IngressClass,
			Host:      env.Domain,
			Path:      env.IngressPath,
			PathType:  ingressPathType,
			TLS: models.HelmIngressTLS{
				Enabled:    env.TLSEnabled,
				SecretName: env.TLSSecretName,
			},
		},
		Resources: models.HelmResources{
			Requests: models.HelmResourceList{CPU: env.CPURequest, Memory: env.MemoryRequest},
			Limits:   models.HelmResourceList{CPU: env.CPULimit, Memory: env.MemoryLimit},
		},
	}

	if env.ExternalDBEnabled {
		v.PostgreSQL.External = &models.HelmExternalDB{
			Enabled:      true,
			Host:         env.ExternalDBHost,
			Port:         env.ExternalDBPort,
			User:         env.ExternalDBUser,
			DatabaseName: env.ExternalDBName,
		}
	}

	return v
}
