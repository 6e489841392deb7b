package aiazure

import (
	"net/http"

	"github.com/Abraxas-365/docfill/pkg/errx"
)

var (
	errorRegistry = errx.NewRegistry("AZURE_OPENAI")

	ErrMissingEndpoint = errorRegistry.Register(
		"MISSING_ENDPOINT",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Azure OpenAI endpoint not provided",
	)

	ErrMissingDeployment = errorRegistry.Register(
		"MISSING_DEPLOYMENT",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Azure OpenAI deployment name not provided",
	)

	ErrMissingCredentials = errorRegistry.Register(
		"MISSING_CREDENTIALS",
		errx.TypeAuthorization,
		http.StatusUnauthorized,
		"Neither an API key nor an Azure AD credential was provided",
	)
)
