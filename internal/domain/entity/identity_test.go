package entity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeMetadata(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantRole  Role
		wantLocs  LocationSet
		wantIssue bool
	}{
		{"vacía", ``, DefaultRole, LocationSet{}, false},
		{"null", `null`, DefaultRole, LocationSet{}, false},
		{"válida", `{"role":"sales_manager","locations":[3,"1",3]}`, RoleSalesManager, NewLocationSet(1, 3), false},
		{"rol sin ámbito descarta ubicaciones", `{"role":"executive","locations":[1]}`, RoleExecutive, LocationSet{}, false},
		{"rol desconocido", `{"role":"superuser","locations":[1]}`, DefaultRole, LocationSet{}, true},
		{"ubicación inválida", `{"role":"sales_supervisor","locations":["x"]}`, RoleSalesSupervisor, LocationSet{}, true},
		{"no es objeto", `[1,2]`, DefaultRole, LocationSet{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta, issue := DecodeMetadata([]byte(tt.raw))
			assert.Equal(t, tt.wantRole, meta.Role)
			assert.True(t, tt.wantLocs.Equal(meta.Locations), "ubicaciones %v", meta.Locations)
			assert.Equal(t, tt.wantIssue, issue != "")
		})
	}
}

func TestIdentityMetadata_EncodeTope(t *testing.T) {
	ids := make([]int64, 0, 2000)
	for i := int64(1); i <= 2000; i++ {
		ids = append(ids, 1_000_000+i)
	}
	_, err := IdentityMetadata{Role: RoleSalesManager, Locations: NewLocationSet(ids...)}.Encode()
	assert.Error(t, err)

	_, issue := DecodeMetadata([]byte(`{"role":"admin","pad":"` + strings.Repeat("x", MaxMetadataBytes) + `"}`))
	assert.NotEmpty(t, issue)
}
