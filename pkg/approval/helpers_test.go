package approval

import errorsx "github.com/openclaw/provenance-core/pkg/errors"

func errorsxIsCode(err error, code string) bool {
	return errorsx.IsCode(err, errorsx.Code(code))
}
