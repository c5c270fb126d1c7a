package slackdom

// Workspace picker (visible login session).
const (
	WorkspaceList      = `div[data-qa="current_workspaces_list"]`
	ShowMoreWorkspaces = `button[data-qa="current_workspaces_list_show_more"]`
	WorkspaceLink      = `div[data-qa="current_workspaces_list"] a[href*="/ssb/redirect"]`
	workspaceListName  = `[data-qa="current_workspaces_list_team_name"], .p-workspace_info__title`
	ClientTeamName     = `.p-ia4_home_header_menu__team_name`
)

// Web client search flow (headless session).
const (
	SearchButton     = `button[data-qa="top_nav_search"]`
	ClearSearch      = `button[data-qa="top_nav_search_clear"]`
	SearchModal      = `div[data-qa="search_modal"]`
	QueryInput       = `div[role="combobox"][aria-label="Query"]`
	QuerySuggestion  = `div[role="option"][data-qa="search-autocomplete-query"]`
	ResultsContainer = `div[data-qa="search_view"]`
	EmptyState       = `[data-qa="search_view_empty_state"]`
	SortButton       = `button[data-qa="search_sort_button"]`
	SortNewest       = `[role="menuitem"][data-qa="search_sort_timestamp"]`
	ResultItem       = `div[data-qa="search_message_group"]`
	ShowMore         = `button[data-qa="message_content_show_more"], button.c-search__expand`
)

// Inside one result item.
const (
	permalinkElement = `a.c-timestamp`
	archiveLink      = `a[href*="/archives/"]`
	permalinkData    = `[data-permalink]`
	messageText      = `[data-qa="message-text"]`
	channelName      = `[data-qa="inline_channel_entity__name"]`
	senderName       = `[data-qa="message_sender_name"]`
	timestampLabel   = `.c-timestamp__label`
)

// EmptyStatePhrase is the text the empty-state marker shows when a query has no matches.
const EmptyStatePhrase = "no results"
