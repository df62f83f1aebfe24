package cloud115

// Upstream provider endpoints consumed by this adapter. The
// passport host is fixed; everything else is relative to the configured
// API base so staging/alternate hosts can be swapped in.
const (
	EndpointRefreshToken = "https://passportapi.115.com/open/refreshToken"

	PathFolderAdd     = "/open/folder/add"
	PathFilesList     = "/open/ufile/files"
	PathFileSearch    = "/open/ufile/search"
	PathDownURL       = "/open/ufile/downurl"
	PathFileDelete    = "/open/ufile/delete"
	PathUploadInit    = "/open/upload/init"
	PathUploadGetToken = "/open/upload/get_token"
)
